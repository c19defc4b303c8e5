package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

const catalogSchema = `{
  "type": "object",
  "required": ["products"],
  "properties": {
    "products": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "price", "categorySlug"],
        "properties": {
          "id":             {"type": "string", "minLength": 1},
          "name":           {"type": "string", "minLength": 1},
          "price":          {"type": "number", "minimum": 0},
          "compareAtPrice": {"type": ["number", "null"]},
          "categorySlug":   {"type": "string", "minLength": 1},
          "categoryName":   {"type": "string"},
          "tags":           {"type": "array", "items": {"type": "string"}},
          "isNew":          {"type": "boolean"},
          "isFeatured":     {"type": "boolean"},
          "rating":         {"type": "number", "minimum": 0, "maximum": 5},
          "numReviews":     {"type": "integer", "minimum": 0},
          "image":          {"type": "string"}
        }
      }
    }
  }
}`

var ErrSchemaViolation = errors.New("catalog schema violation")

var schemaLoader = gojsonschema.NewStringLoader(catalogSchema)

type document struct {
	Products []Product `json:"products"`
}

// LoadFile reads a JSON or YAML catalog (chosen by extension) and validates it.
func LoadFile(path string) ([]Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(raw)
	default:
		return DecodeJSON(raw)
	}
}

// DecodeYAML converts YAML to JSON so both formats share one schema.
func DecodeYAML(raw []byte) ([]Product, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml catalog: %w", err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert yaml catalog: %w", err)
	}
	return DecodeJSON(asJSON)
}

func DecodeJSON(raw []byte) ([]Product, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := validateProducts(doc.Products); err != nil {
		return nil, err
	}
	return doc.Products, nil
}

// Validate checks a JSON catalog document against the catalog schema.
func Validate(raw []byte) error {
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(msgs, "; "))
}
