package progressive

import (
	"strings"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// Filter returns the items where any of the search fields contains term, ignoring case.
// An empty term returns a copy of items in their original order.
func Filter[T any](items []T, term string, fields func(T) []string) []T {
	if term == "" {
		filtered := make([]T, len(items))
		copy(filtered, items)
		return filtered
	}

	needle := folder.String(term)
	filtered := make([]T, 0, len(items))
	for _, item := range items {
		for _, field := range fields(item) {
			if strings.Contains(folder.String(field), needle) {
				filtered = append(filtered, item)
				break
			}
		}
	}
	return filtered
}
