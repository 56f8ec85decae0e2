package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/vinyl-library/pkg/client"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/hlog"
)

const (
	defaultPage    = 1
	defaultPerPage = 50
	upstreamLimit  = 30 * time.Second
)

// errorBody is the JSON shape of every error the proxy produces itself.
type errorBody struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// readyHandler reports whether Redis, when configured, is reachable and the
// Discogs rate limit window still has room.
func readyHandler(redisClient *redis.Client, c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, errorBody{Message: "Redis unavailable", Detail: err.Error()})
				return
			}
		}

		state, err := c.RateLimitState(ctx)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Message: "Rate limit state unavailable", Detail: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"ok":                   true,
			"rate_limit_remaining": state.Remaining,
			"rate_limit_healthy":   state.IsHealthy,
		})
	}
}

// collectionHandler relays GET /api/collection/{username}/{folderId} to the
// Discogs releases endpoint. Status, content type and body are passed
// through; credentials stay on this side.
func collectionHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := hlog.FromRequest(r)

		page, err := queryInt(r, "page", defaultPage)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Message: "Invalid page", Detail: err.Error()})
			return
		}
		perPage, err := queryInt(r, "per_page", defaultPerPage)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Message: "Invalid per_page", Detail: err.Error()})
			return
		}

		req := client.ReleasesRequest{
			Username: r.PathValue("username"),
			FolderID: r.PathValue("folderId"),
			Page:     page,
			PerPage:  perPage,
		}

		ctx, cancel := context.WithTimeout(r.Context(), upstreamLimit)
		defer cancel()

		resp, err := c.FetchReleases(ctx, req)
		if errors.Is(err, client.ErrRateLimited) {
			if state, stateErr := c.RateLimitState(ctx); stateErr == nil {
				w.Header().Set("Retry-After", strconv.Itoa(int(state.TimeUntilReset().Seconds())+1))
			}
			writeJSON(w, http.StatusTooManyRequests, errorBody{Message: "Rate limit exceeded", Detail: err.Error()})
			return
		}
		if err != nil {
			logger.Error().
				Err(err).
				Str("username", req.Username).
				Str("folder_id", req.FolderID).
				Int("page", req.Page).
				Msg("Proxy error")
			writeJSON(w, http.StatusInternalServerError, errorBody{Message: "Proxy error", Detail: err.Error()})
			return
		}

		w.Header().Set("Content-Type", resp.ContentType)
		w.WriteHeader(resp.StatusCode)
		if _, err := w.Write(resp.Body); err != nil {
			logger.Warn().Err(err).Msg("Failed to write response")
		}
	}
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, errors.New(name + " must be at least 1")
	}
	return n, nil
}
