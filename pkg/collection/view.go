package collection

import (
	"regexp"
	"slices"
	"strings"
)

var leadingArticle = regexp.MustCompile(`^(the|a|an)\s+`)

// SortKey normalizes an artist string for ordering: lowercase with one
// leading "the", "a" or "an" removed, so "The Beatles" sorts as "beatles".
func SortKey(artists string) string {
	return leadingArticle.ReplaceAllString(strings.ToLower(artists), "")
}

// Matches reports whether the item contains query, case-insensitively, in
// "<artists> <title>". The empty query matches everything.
func Matches(item Item, query string) bool {
	if query == "" {
		return true
	}
	haystack := strings.ToLower(item.Artists + " " + item.Title)
	return strings.Contains(haystack, strings.ToLower(query))
}

// Visible filters items by query and sorts the result by SortKey. Items with
// equal keys keep their input order.
func Visible(items []Item, query string) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if Matches(it, query) {
			out = append(out, it)
		}
	}

	slices.SortStableFunc(out, func(a, b Item) int {
		return strings.Compare(SortKey(a.Artists), SortKey(b.Artists))
	})
	return out
}
