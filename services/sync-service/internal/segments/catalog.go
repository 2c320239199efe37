// Package segments keeps target-side segment (list) membership in line with
// the source contact's segment slugs.
package segments

import (
	"sort"

	"github.com/spf13/viper"
)

// Catalog maps a segment slug to the segment's display name in the target.
type Catalog map[string]string

// Index maps a segment slug to the target segment id.
type Index map[string]int64

// DefaultCatalog returns the built-in slug catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		"vip":      "VIP Customers",
		"regular":  "Regular Customers",
		"new":      "New Customers",
		"inactive": "Inactive Customers",
	}
}

// CatalogFromViper returns sync.segments when configured, else the default.
func CatalogFromViper() Catalog {
	configured := viper.GetStringMapString("sync.segments")
	if len(configured) == 0 {
		return DefaultCatalog()
	}
	return Catalog(configured)
}

// Slugs returns the catalog slugs in sorted order.
func (c Catalog) Slugs() []string {
	slugs := make([]string, 0, len(c))
	for slug := range c {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}
