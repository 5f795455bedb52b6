// Package signature loads and holds the catalog of known emission signatures.
package signature

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RMahshie/skywatch/internal/storage"
	"github.com/RMahshie/skywatch/pkg/models"
)

// Format selects the decoder for a signature source
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks the format from a file name or object key
func FormatFor(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ValidationError reports the first malformed catalog entry.
// Index is -1 when the source as a whole could not be decoded.
type ValidationError struct {
	Index     int
	DroneName string
	Field     string
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("signature source: %s", e.Reason)
	}
	if e.DroneName != "" {
		return fmt.Sprintf("signature %d (%q): %s: %s", e.Index, e.DroneName, e.Field, e.Reason)
	}
	return fmt.Sprintf("signature %d: %s: %s", e.Index, e.Field, e.Reason)
}

// Catalog is an ordered, read-only set of signatures
type Catalog struct {
	patterns []models.SignaturePattern
}

// NewCatalog builds a catalog from already validated patterns
func NewCatalog(patterns []models.SignaturePattern) *Catalog {
	return &Catalog{patterns: slices.Clone(patterns)}
}

// Patterns returns the signatures in catalog order
func (c *Catalog) Patterns() []models.SignaturePattern {
	if c == nil {
		return nil
	}
	return slices.Clone(c.patterns)
}

// Len returns the number of signatures
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.patterns)
}

// record mirrors one source entry; pointers tell missing fields from zero values
type record struct {
	DroneName    *string   `json:"drone_name" yaml:"drone_name"`
	FreqBand     []float64 `json:"freq_band" yaml:"freq_band"`
	BurstPattern *string   `json:"burst_pattern" yaml:"burst_pattern"`
	RSSIMin      *float64  `json:"rssi_min" yaml:"rssi_min"`
}

// Load reads a catalog from a file. A missing file yields an empty catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewCatalog(nil), nil
		}
		return nil, fmt.Errorf("failed to read signature file: %w", err)
	}
	return Parse(data, FormatFor(path))
}

// ObjectGetter is the subset of storage used to fetch a catalog
type ObjectGetter interface {
	DownloadFile(ctx context.Context, key string) ([]byte, error)
}

// LoadFromStore reads a catalog from object storage. A missing object yields an empty catalog.
func LoadFromStore(ctx context.Context, store ObjectGetter, key string) (*Catalog, error) {
	data, err := store.DownloadFile(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewCatalog(nil), nil
		}
		return nil, fmt.Errorf("failed to fetch signature object %s: %w", key, err)
	}
	return Parse(data, FormatFor(key))
}

// Parse decodes and validates catalog data
func Parse(data []byte, format Format) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewCatalog(nil), nil
	}

	var records []record
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, &ValidationError{Index: -1, Field: "source", Reason: "invalid yaml: " + err.Error()}
		}
	default:
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, &ValidationError{Index: -1, Field: "source", Reason: "invalid json: " + err.Error()}
		}
	}

	patterns := make([]models.SignaturePattern, 0, len(records))
	for i, rec := range records {
		p, err := rec.validate(i)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return &Catalog{patterns: patterns}, nil
}

func (r record) validate(index int) (models.SignaturePattern, error) {
	fail := func(field, reason string) (models.SignaturePattern, error) {
		name := ""
		if r.DroneName != nil {
			name = *r.DroneName
		}
		return models.SignaturePattern{}, &ValidationError{Index: index, DroneName: name, Field: field, Reason: reason}
	}

	if r.DroneName == nil || strings.TrimSpace(*r.DroneName) == "" {
		return fail("drone_name", "missing")
	}
	if r.FreqBand == nil {
		return fail("freq_band", "missing")
	}
	if len(r.FreqBand) != 2 {
		return fail("freq_band", fmt.Sprintf("want [min, max], got %d values", len(r.FreqBand)))
	}
	band := models.FrequencyBand{MinMHz: r.FreqBand[0], MaxMHz: r.FreqBand[1]}
	if !band.Valid() {
		return fail("freq_band", fmt.Sprintf("min %g greater than max %g", band.MinMHz, band.MaxMHz))
	}
	if r.BurstPattern == nil || *r.BurstPattern == "" {
		return fail("burst_pattern", "missing")
	}
	if r.RSSIMin == nil {
		return fail("rssi_min", "missing")
	}

	return models.SignaturePattern{
		DroneName:    *r.DroneName,
		FreqBand:     band,
		BurstPattern: *r.BurstPattern,
		RSSIMin:      *r.RSSIMin,
	}, nil
}
