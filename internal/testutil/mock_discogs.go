// Package testutil provides a fake Discogs API for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// Release is a collection entry served by MockDiscogs. Zero-valued fields are
// omitted from the JSON so tests can exercise missing-field handling.
type Release struct {
	ID         int64
	InstanceID int64
	Title      string
	Year       int
	Artists    []string
	Cover      string
}

// MarshalJSON renders the release the way Discogs does.
func (r Release) MarshalJSON() ([]byte, error) {
	info := map[string]any{}
	if r.Title != "" {
		info["title"] = r.Title
	}
	if r.Year != 0 {
		info["year"] = r.Year
	}
	if len(r.Artists) > 0 {
		artists := make([]map[string]string, 0, len(r.Artists))
		for _, name := range r.Artists {
			artists = append(artists, map[string]string{"name": name})
		}
		info["artists"] = artists
	}
	if r.Cover != "" {
		info["cover_image"] = r.Cover
	}

	entry := map[string]any{
		"id":                r.ID,
		"basic_information": info,
	}
	if r.InstanceID != 0 {
		entry["instance_id"] = r.InstanceID
	}
	return json.Marshal(entry)
}

// GenerateReleases returns n releases with ids 1..n.
func GenerateReleases(n int) []Release {
	out := make([]Release, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Release{
			ID:      int64(i),
			Title:   fmt.Sprintf("Album %d", i),
			Year:    1960 + i%60,
			Artists: []string{fmt.Sprintf("Artist %03d", i)},
			Cover:   fmt.Sprintf("https://img.example.com/%d.jpg", i),
		})
	}
	return out
}

// MockResponse forces the response for one page.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockDiscogs is a configurable fake of the Discogs collection API. It also
// answers the proxy route so it can stand in for the proxy in aggregator tests.
type MockDiscogs struct {
	server *httptest.Server

	mu        sync.RWMutex
	releases  []Release
	overrides map[int]MockResponse
	remaining int

	requestCount      int
	requestedPages    []int
	lastRequestHeader http.Header
}

// NewMockDiscogs creates a fake serving the given collection.
func NewMockDiscogs(releases []Release) *MockDiscogs {
	m := &MockDiscogs{
		releases:  releases,
		overrides: make(map[int]MockResponse),
		remaining: 60,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/{username}/collection/folders/{folder}/releases", m.serveReleases)
	mux.HandleFunc("GET /api/collection/{username}/{folder}", m.serveReleases)
	m.server = httptest.NewServer(mux)

	return m
}

// URL returns the mock server URL.
func (m *MockDiscogs) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockDiscogs) Close() {
	m.server.Close()
}

// SetReleases replaces the served collection.
func (m *MockDiscogs) SetReleases(releases []Release) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases = releases
}

// SetPageResponse forces the response for a page number.
func (m *MockDiscogs) SetPageResponse(page int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[page] = resp
}

// SetRateLimitRemaining sets the X-Discogs-Ratelimit-Remaining value served.
func (m *MockDiscogs) SetRateLimitRemaining(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remaining = n
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockDiscogs) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// RequestedPages returns the page numbers requested so far, in arrival order.
func (m *MockDiscogs) RequestedPages() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.requestedPages...)
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockDiscogs) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader.Clone()
}

func (m *MockDiscogs) serveReleases(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 50)

	m.mu.Lock()
	m.requestCount++
	m.requestedPages = append(m.requestedPages, page)
	m.lastRequestHeader = r.Header.Clone()
	override, hasOverride := m.overrides[page]
	releases := m.releases
	remaining := m.remaining
	m.mu.Unlock()

	w.Header().Set("X-Discogs-Ratelimit", "60")
	w.Header().Set("X-Discogs-Ratelimit-Used", strconv.Itoa(60-remaining))
	w.Header().Set("X-Discogs-Ratelimit-Remaining", strconv.Itoa(remaining))

	if hasOverride {
		if override.Delay > 0 {
			time.Sleep(override.Delay)
		}
		for k, v := range override.Headers {
			w.Header().Set(k, v)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(override.StatusCode)
		w.Write([]byte(override.Body))
		return
	}

	pages := (len(releases) + perPage - 1) / perPage
	if pages == 0 {
		pages = 1
	}

	w.Header().Set("Content-Type", "application/json")
	if page > pages {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Page not found."}`))
		return
	}

	from := (page - 1) * perPage
	to := min(from+perPage, len(releases))

	body := map[string]any{
		"pagination": map[string]any{
			"page":     page,
			"pages":    pages,
			"per_page": perPage,
			"items":    len(releases),
		},
		"releases": releases[from:to],
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 1 {
		return def
	}
	return v
}
