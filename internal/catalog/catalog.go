// Package catalog holds the per-batch product aggregate: metadata, candidate
// image sources and per-product load errors, keyed by EAN in load order.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/thomasbroadsword/PhotoGenSeo/internal/models"
)

// MaxProducts caps how many identifiers one batch may process.
const MaxProducts = 10

// BatchSearcher is the backend call the load stage depends on.
type BatchSearcher interface {
	BatchSearch(ctx context.Context, eans []string) (map[string]models.ProductData, error)
}

// Searcher is the backend call the discover-more stage depends on.
type Searcher interface {
	SearchMore(ctx context.Context, ean, productName string) ([]models.ImageSource, error)
}

// ParseIdentifiers extracts up to MaxProducts identifiers from raw operator
// input. Identifiers are split on newlines, commas, semicolons and
// whitespace, trimmed, de-duplicated preserving first occurrence, and capped.
func ParseIdentifiers(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case '\n', '\r', '\t', ' ', ',', ';':
			return true
		}
		return false
	})

	seen := make(map[string]bool, len(fields))
	var ids []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		ids = append(ids, f)
		if len(ids) == MaxProducts {
			break
		}
	}
	return ids
}

// Catalog is the loaded batch, iterable in the order identifiers were
// requested.
type Catalog struct {
	order    []string
	products map[string]*models.ProductData
}

// Load issues one batched backend call and builds a catalog with one entry
// per identifier. Per-identifier failures land in that entry's Error field; a
// failure of the call itself returns an error and no catalog, so the caller
// keeps whatever it had before.
func Load(ctx context.Context, backend BatchSearcher, ids []string) (*Catalog, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("no identifiers to load")
	}
	if len(ids) > MaxProducts {
		ids = ids[:MaxProducts]
	}

	products, err := backend.BatchSearch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("batch search failed: %w", err)
	}

	c := &Catalog{products: make(map[string]*models.ProductData, len(ids))}
	for _, id := range ids {
		data, ok := products[id]
		if !ok {
			// The backend keys responses by the normalized (digits-only)
			// form of the identifier.
			data, ok = products[digitsOnly(id)]
		}
		if !ok {
			data = models.ProductData{Error: "no result returned for identifier"}
		}
		entry := data
		c.order = append(c.order, id)
		c.products[id] = &entry
	}
	return c, nil
}

// EANs returns the catalog keys in load order.
func (c *Catalog) EANs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Get returns the entry for an identifier.
func (c *Catalog) Get(ean string) (*models.ProductData, bool) {
	p, ok := c.products[ean]
	return p, ok
}

// Eligible returns the identifiers without a load error, in load order.
func (c *Catalog) Eligible() []string {
	var out []string
	for _, ean := range c.order {
		if c.products[ean].Error == "" {
			out = append(out, ean)
		}
	}
	return out
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.order)
}

// DiscoverMore fetches another portion of candidate images for one product
// and appends them to its source list. Sources only ever accumulate;
// duplicate URLs across calls are tolerated. On failure the source list is
// unchanged and the error is returned for transient display.
func (c *Catalog) DiscoverMore(ctx context.Context, backend Searcher, ean string) ([]models.ImageSource, error) {
	p, ok := c.products[ean]
	if !ok {
		return nil, fmt.Errorf("unknown product %q", ean)
	}
	if p.Error != "" {
		return nil, fmt.Errorf("product %q failed to load and cannot be searched", ean)
	}

	sources, err := backend.SearchMore(ctx, ean, p.Product.Name)
	if err != nil {
		return nil, fmt.Errorf("image search failed: %w", err)
	}
	p.Sources = append(p.Sources, sources...)
	return sources, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
