package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const productsQuery = `SELECT p.id, p.name, p.price, p.compare_at_price, c.slug, c.name,
	COALESCE(array_to_string(p.tags, ','), ''), p.is_new, p.is_featured, p.rating, p.num_reviews,
	COALESCE(p.image, '')
FROM products p
JOIN categories c ON c.id = p.category_id
WHERE p.is_active
ORDER BY p.created_at DESC, p.id`

// SQLProvider reads the live storefront catalog from Postgres on every call.
type SQLProvider struct {
	db *sql.DB
}

// OpenPostgres opens a database/sql handle through the pgx driver.
func OpenPostgres(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func NewSQLProvider(db *sql.DB) *SQLProvider {
	return &SQLProvider{db: db}
}

func (p *SQLProvider) Products(ctx context.Context) ([]Product, error) {
	rows, err := p.db.QueryContext(ctx, productsQuery)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var (
			prod      Product
			compareAt sql.NullFloat64
			tags      string
		)
		if err := rows.Scan(
			&prod.ID,
			&prod.Name,
			&prod.Price,
			&compareAt,
			&prod.CategorySlug,
			&prod.CategoryName,
			&tags,
			&prod.IsNew,
			&prod.IsFeatured,
			&prod.Rating,
			&prod.NumReviews,
			&prod.Image,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		if compareAt.Valid {
			v := compareAt.Float64
			prod.CompareAtPrice = &v
		}
		prod.Tags = splitTags(tags)
		if prod.Price < 0 {
			continue
		}
		out = append(out, prod)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return out, nil
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
