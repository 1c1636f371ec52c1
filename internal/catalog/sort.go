package catalog

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/starford/launchgrid/internal/models"
)

// SortByName orders records by case-insensitive display name, breaking ties
// by path so the order is total.
func SortByName(records []models.ApplicationRecord) {
	// Collators are not safe for concurrent use; build one per call.
	c := collate.New(language.Und, collate.IgnoreCase, collate.Loose)
	slices.SortStableFunc(records, func(a, b models.ApplicationRecord) int {
		if r := c.CompareString(a.Name, b.Name); r != 0 {
			return r
		}
		return strings.Compare(a.Path, b.Path)
	})
}
