package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/vinyl-library/internal/testutil"
	"github.com/Sternrassler/vinyl-library/pkg/client"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	testToken     = "secret-token"
	testUserAgent = "VinylLibraryTest/1.0 (+test@example.com)"
	testOrigin    = "http://localhost:5173"
)

func testConfig() config {
	return config{
		Token:          testToken,
		UserAgent:      testUserAgent,
		Port:           defaultPort,
		CORSOrigins:    []string{testOrigin},
		CacheTTL:       time.Minute,
		MetricsEnabled: true,
	}
}

// newTestProxy serves the proxy in front of mock.
func newTestProxy(t *testing.T, cfg config, mock *testutil.MockDiscogs, redisClient *redis.Client) *httptest.Server {
	t.Helper()

	clientCfg := client.DefaultConfig(cfg.Token, cfg.UserAgent)
	clientCfg.BaseURL = mock.URL()
	clientCfg.Redis = redisClient
	clientCfg.CacheTTL = cfg.CacheTTL
	clientCfg.ThrottleDelay = time.Millisecond
	clientCfg.Retry = client.RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		BackoffMultiplier: 2,
	}

	c, err := client.New(clientCfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	srv := httptest.NewServer(newServer(cfg, c, redisClient, zerolog.Nop()))
	t.Cleanup(func() {
		srv.Close()
		c.Close()
	})
	return srv
}

func get(t *testing.T, url string, header http.Header) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body error = %v", err)
	}
	return resp, string(body)
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if strings.TrimSpace(string(body)) != `{"ok":true}` {
		t.Errorf(`Expected body {"ok":true}, got %s`, string(body))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadyEndpoint_WithoutRedis(t *testing.T) {
	mock := testutil.NewMockDiscogs(nil)
	defer mock.Close()

	srv := newTestProxy(t, testConfig(), mock, nil)

	resp, body := get(t, srv.URL+"/ready", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", resp.StatusCode, body)
	}

	var ready struct {
		OK        bool `json:"ok"`
		Remaining int  `json:"rate_limit_remaining"`
	}
	if err := json.Unmarshal([]byte(body), &ready); err != nil {
		t.Fatalf("invalid JSON %q: %v", body, err)
	}
	if !ready.OK || ready.Remaining != 60 {
		t.Errorf("ready = %+v, want ok with 60 remaining", ready)
	}
}

func TestCollectionEndpoint_Passthrough(t *testing.T) {
	mock := testutil.NewMockDiscogs(testutil.GenerateReleases(120))
	defer mock.Close()

	srv := newTestProxy(t, testConfig(), mock, nil)

	resp, body := get(t, srv.URL+"/api/collection/jschow/0?page=2&per_page=100", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var page struct {
		Pagination struct {
			Page  int `json:"page"`
			Pages int `json:"pages"`
		} `json:"pagination"`
		Releases []json.RawMessage `json:"releases"`
	}
	if err := json.Unmarshal([]byte(body), &page); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if page.Pagination.Page != 2 || page.Pagination.Pages != 2 {
		t.Errorf("pagination = %+v, want page 2 of 2", page.Pagination)
	}
	if len(page.Releases) != 20 {
		t.Errorf("got %d releases, want 20", len(page.Releases))
	}
}

func TestCollectionEndpoint_Defaults(t *testing.T) {
	mock := testutil.NewMockDiscogs(testutil.GenerateReleases(120))
	defer mock.Close()

	srv := newTestProxy(t, testConfig(), mock, nil)

	resp, body := get(t, srv.URL+"/api/collection/jschow/0", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var page struct {
		Releases []json.RawMessage `json:"releases"`
	}
	if err := json.Unmarshal([]byte(body), &page); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(page.Releases) != defaultPerPage {
		t.Errorf("got %d releases, want %d", len(page.Releases), defaultPerPage)
	}
	if pages := mock.RequestedPages(); len(pages) != 1 || pages[0] != defaultPage {
		t.Errorf("requested pages = %v, want [1]", pages)
	}
}

func TestCollectionEndpoint_InjectsCredentials(t *testing.T) {
	mock := testutil.NewMockDiscogs(testutil.GenerateReleases(3))
	defer mock.Close()

	srv := newTestProxy(t, testConfig(), mock, nil)

	get(t, srv.URL+"/api/collection/jschow/0", http.Header{"User-Agent": []string{"Mozilla/5.0"}})

	header := mock.LastRequestHeader()
	if got := header.Get("Authorization"); got != "Discogs token="+testToken {
		t.Errorf("Authorization = %q", got)
	}
	if got := header.Get("User-Agent"); got != testUserAgent {
		t.Errorf("User-Agent = %q, want %q", got, testUserAgent)
	}
}

func TestCollectionEndpoint_NeverLeaksCredentials(t *testing.T) {
	mock := testutil.NewMockDiscogs(testutil.GenerateReleases(3))
	defer mock.Close()

	srv := newTestProxy(t, testConfig(), mock, nil)

	for _, path := range []string{"/api/collection/jschow/0", "/api/collection/jschow/0?page=9", "/ready", "/health"} {
		resp, body := get(t, srv.URL+path, nil)
		for _, secret := range []string{testToken, testUserAgent} {
			if strings.Contains(body, secret) {
				t.Errorf("%s: body contains %q", path, secret)
			}
			for name, values := range resp.Header {
				for _, v := range values {
					if strings.Contains(v, secret) {
						t.Errorf("%s: header %s contains %q", path, name, secret)
					}
				}
			}
		}
	}
}

func TestCollectionEndpoint_RelaysUpstreamErrors(t *testing.T) {
	mock := testutil.NewMockDiscogs(testutil.GenerateReleases(10))
	defer mock.Close()

	mock.SetPageResponse(3, testutil.MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       "private collection",
		Headers:    map[string]string{"Content-Type": "text/plain"},
	})

	srv := newTestProxy(t, testConfig(), mock, nil)

	resp, body := get(t, srv.URL+"/api/collection/jschow/0?page=2", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("page past the end: status = %d, want 404", resp.StatusCode)
	}
	if !strings.Contains(body, "Page not found.") {
		t.Errorf("page past the end: body = %q", body)
	}

	resp, body = get(t, srv.URL+"/api/collection/jschow/0?page=3", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
	if body != "private collection" {
		t.Errorf("body = %q, want upstream body", body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
}

func TestCollectionEndpoint_NetworkError(t *testing.T) {
	mock := testutil.NewMockDiscogs(nil)
	srv := newTestProxy(t, testConfig(), mock, nil)
	mock.Close()

	resp, body := get(t, srv.URL+"/api/collection/jschow/0", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}

	var e errorBody
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		t.Fatalf("invalid JSON %q: %v", body, err)
	}
	if e.Message != "Proxy error" {
		t.Errorf("message = %q, want Proxy error", e.Message)
	}
	if e.Detail == "" {
		t.Error("detail should describe the failure")
	}
}

func TestCollectionEndpoint_RateLimited(t *testing.T) {
	mock := testutil.NewMockDiscogs(testutil.GenerateReleases(10))
	defer mock.Close()
	mock.SetRateLimitRemaining(0)

	srv := newTestProxy(t, testConfig(), mock, nil)

	if resp, _ := get(t, srv.URL+"/api/collection/jschow/0", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", resp.StatusCode)
	}

	resp, body := get(t, srv.URL+"/api/collection/jschow/0?page=2", nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 (body %s)", resp.StatusCode, body)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-After should be set")
	}
	if n := mock.GetRequestCount(); n != 1 {
		t.Errorf("upstream requests = %d, want 1", n)
	}
}

func TestCollectionEndpoint_InvalidQuery(t *testing.T) {
	mock := testutil.NewMockDiscogs(nil)
	defer mock.Close()

	srv := newTestProxy(t, testConfig(), mock, nil)

	for _, query := range []string{"page=abc", "page=0", "per_page=-5"} {
		resp, _ := get(t, srv.URL+"/api/collection/jschow/0?"+query, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", query, resp.StatusCode)
		}
	}
	if n := mock.GetRequestCount(); n != 0 {
		t.Errorf("upstream requests = %d, want 0", n)
	}
}

func TestCORS(t *testing.T) {
	mock := testutil.NewMockDiscogs(testutil.GenerateReleases(1))
	defer mock.Close()

	srv := newTestProxy(t, testConfig(), mock, nil)

	resp, _ := get(t, srv.URL+"/api/collection/jschow/0", http.Header{"Origin": []string{testOrigin}})
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != testOrigin {
		t.Errorf("allowed origin: Access-Control-Allow-Origin = %q, want %q", got, testOrigin)
	}

	resp, _ = get(t, srv.URL+"/api/collection/jschow/0", http.Header{"Origin": []string{"http://evil.example"}})
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin: Access-Control-Allow-Origin = %q, want empty", got)
	}

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/collection/jschow/0", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	preflight, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight error = %v", err)
	}
	preflight.Body.Close()
	if preflight.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", preflight.StatusCode)
	}
	if got := preflight.Header.Get("Access-Control-Allow-Origin"); got != testOrigin {
		t.Errorf("preflight Access-Control-Allow-Origin = %q, want %q", got, testOrigin)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mock := testutil.NewMockDiscogs(testutil.GenerateReleases(1))
	defer mock.Close()

	srv := newTestProxy(t, testConfig(), mock, nil)
	get(t, srv.URL+"/api/collection/jschow/0", nil)

	resp, body := get(t, srv.URL+"/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	for _, want := range []string{
		`proxy_http_requests_total{code="200",route="collection"}`,
		"discogs_requests_total",
		"discogs_rate_limit_remaining",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	mock := testutil.NewMockDiscogs(nil)
	defer mock.Close()

	cfg := testConfig()
	cfg.MetricsEnabled = false
	srv := newTestProxy(t, cfg, mock, nil)

	if resp, _ := get(t, srv.URL+"/metrics", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, key := range []string{"DISCOGS_TOKEN", "USER_AGENT", "PORT", "CORS_ORIGIN", "UPSTREAM_URL", "REDIS_URL", "CACHE_TTL", "METRICS_ENABLED"} {
			t.Setenv(key, "")
		}

		cfg, err := loadConfig()
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.Port != "5175" {
			t.Errorf("Port = %q, want 5175", cfg.Port)
		}
		if cfg.UserAgent != defaultUserAgent {
			t.Errorf("UserAgent = %q", cfg.UserAgent)
		}
		if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:5173" {
			t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
		}
		if cfg.UpstreamURL != client.DefaultBaseURL {
			t.Errorf("UpstreamURL = %q", cfg.UpstreamURL)
		}
		if cfg.CacheTTL != time.Minute {
			t.Errorf("CacheTTL = %v, want 1m", cfg.CacheTTL)
		}
		if !cfg.MetricsEnabled {
			t.Error("metrics should be enabled by default")
		}
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("DISCOGS_TOKEN", "abc")
		t.Setenv("PORT", "8080")
		t.Setenv("CORS_ORIGIN", "http://a.example, http://b.example,")
		t.Setenv("CACHE_TTL", "5m")
		t.Setenv("METRICS_ENABLED", "false")

		cfg, err := loadConfig()
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.Token != "abc" || cfg.Port != "8080" {
			t.Errorf("Token/Port = %q/%q", cfg.Token, cfg.Port)
		}
		if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.example" {
			t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
		}
		if cfg.CacheTTL != 5*time.Minute {
			t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
		}
		if cfg.MetricsEnabled {
			t.Error("metrics should be disabled")
		}
	})

	t.Run("invalid", func(t *testing.T) {
		for key, value := range map[string]string{
			"PORT":            "http",
			"CACHE_TTL":       "soon",
			"METRICS_ENABLED": "maybe",
		} {
			t.Run(key, func(t *testing.T) {
				t.Setenv(key, value)
				if _, err := loadConfig(); err == nil {
					t.Errorf("loadConfig() with %s=%q should fail", key, value)
				}
			})
		}
	})
}

func TestConnectRedis_Disabled(t *testing.T) {
	redisClient, err := connectRedis(t.Context(), "")
	if err != nil || redisClient != nil {
		t.Errorf("connectRedis(\"\") = %v, %v; want nil, nil", redisClient, err)
	}
}

func TestConnectRedis_InvalidURL(t *testing.T) {
	if _, err := connectRedis(t.Context(), "redis://:bad:port/x"); err == nil {
		t.Error("expected error for invalid URL")
	}
}
