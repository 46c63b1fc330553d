package documents

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/odyssey-sales/internal/sales/pricing"
)

// Defaults holds the pricing parameters a new or converted document starts with.
type Defaults struct {
	byType map[DocumentType]pricing.Parameters
}

// For returns the defaults of docType, falling back to pricing.DefaultParameters.
func (d Defaults) For(docType DocumentType) pricing.Parameters {
	if p, ok := d.byType[docType]; ok {
		return p
	}
	return pricing.DefaultParameters()
}

// WithType returns a copy of d with the defaults of docType replaced.
func (d Defaults) WithType(docType DocumentType, params pricing.Parameters) Defaults {
	out := Defaults{byType: make(map[DocumentType]pricing.Parameters, len(d.byType)+1)}
	for k, v := range d.byType {
		out.byType[k] = v
	}
	out.byType[docType] = params
	return out
}

// LoadDefaults reads per-type pricing defaults from a YAML file. An empty path
// yields the built-in defaults.
func LoadDefaults(path string) (Defaults, error) {
	if path == "" {
		return Defaults{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults{}, fmt.Errorf("documents: read defaults: %w", err)
	}
	return ParseDefaults(data)
}

// ParseDefaults decodes YAML keyed by document type name or slug:
//
//	quotation:
//	  tax_rate_percent: 11
//	sales-order:
//	  apply_discount_on: Net Total
func ParseDefaults(data []byte) (Defaults, error) {
	var raw map[string]pricing.RawParameters
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Defaults{}, fmt.Errorf("documents: parse defaults: %w", err)
	}
	out := Defaults{byType: make(map[DocumentType]pricing.Parameters, len(raw))}
	for key, entry := range raw {
		docType, err := ParseDocumentType(key)
		if err != nil {
			return Defaults{}, err
		}
		params, err := pricing.ParseParameters(entry)
		if err != nil {
			return Defaults{}, fmt.Errorf("documents: defaults for %s: %w", docType, err)
		}
		out.byType[docType] = params
	}
	return out, nil
}
