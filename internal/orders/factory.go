package orders

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type Options struct {
	Source  string
	APIURL  string
	Timeout time.Duration
	DB      *sql.DB
	Seed    []Order
}

func NewLookup(opts Options) (Lookup, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Source)) {
	case "", "static":
		return NewStaticLookup(opts.Seed), nil
	case "http":
		if strings.TrimSpace(opts.APIURL) == "" {
			return nil, fmt.Errorf("http order lookup requires ORDERS_API_URL")
		}
		return NewHTTPLookup(opts.APIURL, opts.Timeout), nil
	case "postgres":
		if opts.DB == nil {
			return nil, fmt.Errorf("postgres order lookup requires a database handle")
		}
		return NewSQLLookup(opts.DB), nil
	default:
		return nil, fmt.Errorf("unsupported orders source %q", opts.Source)
	}
}
