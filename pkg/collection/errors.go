package collection

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrDisposed is returned by operations on a disposed aggregator.
	ErrDisposed = errors.New("collection: aggregator disposed")

	// errStale marks a result that arrived after its session ended.
	errStale = errors.New("collection: session ended")
)

// FetchError reports a page that could not be fetched: a non-2xx status
// other than 404, a network failure (StatusCode 0) or an undecodable body.
type FetchError struct {
	Page       int
	StatusCode int

	// Message is the "message" field of a JSON error body, if any.
	Message string

	Err error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch page %d", e.Page)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// errorMessage extracts the message of a Discogs or proxy error body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	if payload.Detail != "" {
		return payload.Message + ": " + payload.Detail
	}
	return payload.Message
}
