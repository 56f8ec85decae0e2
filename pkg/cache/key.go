package cache

import (
	"fmt"
	"strings"
)

// CacheKey identifies one page of one user's collection folder.
type CacheKey struct {
	Username string
	FolderID string
	Page     int
	PerPage  int
}

// String generates a deterministic cache key string.
// Discogs usernames are case-insensitive, so the username is lowercased.
//
// Example:
//
//	discogs:users/jschow/collection/folders/0/releases:page=2:per_page=100
func (k CacheKey) String() string {
	return fmt.Sprintf("discogs:users/%s/collection/folders/%s/releases:page=%d:per_page=%d",
		strings.ToLower(k.Username), k.FolderID, k.Page, k.PerPage)
}
