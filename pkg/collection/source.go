package collection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/vinyl-library/pkg/client"
)

// PageRequest addresses one page of a collection folder.
type PageRequest struct {
	Username string
	FolderID int
	Page     int
	PerPage  int
}

// Response is a raw page response. Non-2xx statuses are not errors at this
// level; the Aggregator interprets them.
type Response struct {
	StatusCode int
	Body       []byte
}

// Source fetches raw collection pages.
type Source interface {
	Fetch(ctx context.Context, req PageRequest) (*Response, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, req PageRequest) (*Response, error)

// Fetch calls f(ctx, req).
func (f SourceFunc) Fetch(ctx context.Context, req PageRequest) (*Response, error) {
	return f(ctx, req)
}

// HTTPSource fetches pages through the collection proxy.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSource returns a source for the proxy at baseURL. A nil httpClient
// selects one with a 30s timeout.
func NewHTTPSource(baseURL string, httpClient *http.Client) *HTTPSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Fetch requests GET /api/collection/{username}/{folderId}?per_page&page.
func (s *HTTPSource) Fetch(ctx context.Context, req PageRequest) (*Response, error) {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(req.PerPage))
	query.Set("page", strconv.Itoa(req.Page))

	u := s.baseURL + "/api/collection/" + url.PathEscape(req.Username) + "/" +
		strconv.Itoa(req.FolderID) + "?" + query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// ClientSource fetches pages from Discogs directly, without a proxy. It is
// meant for trusted environments that may hold the token themselves.
type ClientSource struct {
	client *client.Client
}

// NewClientSource wraps a Discogs client.
func NewClientSource(c *client.Client) *ClientSource {
	return &ClientSource{client: c}
}

// Fetch calls the Discogs releases endpoint. A spent rate limit is reported
// as 429, the status the proxy would relay.
func (s *ClientSource) Fetch(ctx context.Context, req PageRequest) (*Response, error) {
	resp, err := s.client.FetchReleases(ctx, client.ReleasesRequest{
		Username: req.Username,
		FolderID: strconv.Itoa(req.FolderID),
		Page:     req.Page,
		PerPage:  req.PerPage,
	})
	if errors.Is(err, client.ErrRateLimited) {
		return &Response{
			StatusCode: http.StatusTooManyRequests,
			Body:       []byte(`{"message": "rate limit exceeded"}`),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}
