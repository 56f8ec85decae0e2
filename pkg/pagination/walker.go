package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds walker configuration.
type Config struct {
	// MaxConcurrency is the number of pages fetched in parallel once the
	// total page count is known. 1 walks strictly in order.
	MaxConcurrency int

	// Timeout per page fetch.
	Timeout time.Duration
}

// DefaultConfig returns a sequential walk with a 15s per-page timeout.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 1,
		Timeout:        15 * time.Second,
	}
}

// PageFetcher fetches a single page.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) (PageResult, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, page int) (PageResult, error)

// FetchPage calls f(ctx, page).
func (f PageFetcherFunc) FetchPage(ctx context.Context, page int) (PageResult, error) {
	return f(ctx, page)
}

// PageResult describes what a fetched page revealed about the collection.
type PageResult struct {
	// TotalPages is the page count reported upstream, 0 if unknown.
	TotalPages int

	// Last is set when no page after this one exists.
	Last bool
}

// Result summarises a walk.
type Result struct {
	// Fetched is the number of pages fetched without error.
	Fetched int

	// Highest is the highest page fetched without error, 0 if none.
	Highest int

	// Done is set when the walk reached the end of the collection.
	Done bool
}

// Walker fetches consecutive pages through a PageFetcher.
type Walker struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewWalker creates a new walker.
func NewWalker(fetcher PageFetcher, config Config) *Walker {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Walker{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "pagination").Logger(),
	}
}

// Walk fetches pages from `from` onward. total is the known page count or 0.
// Pages are fetched one at a time until the count is known; after that up to
// MaxConcurrency pages are in flight. The first error stops the walk and is
// returned along with the progress made.
//
// While the total is unknown the fetcher must eventually report Last or a
// TotalPages, otherwise the walk only ends on error or cancellation.
func (w *Walker) Walk(ctx context.Context, from, total int) (Result, error) {
	start := time.Now()
	if from < 1 {
		from = 1
	}

	var res Result
	page := from

	for total == 0 || (w.config.MaxConcurrency == 1 && page <= total) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		pr, err := w.fetch(ctx, page)
		if err != nil {
			return res, fmt.Errorf("page %d: %w", page, err)
		}
		res.record(page)

		if pr.Last {
			res.Done = true
			w.logDone(res, start)
			return res, nil
		}
		if total == 0 && pr.TotalPages > 0 {
			total = pr.TotalPages
		}
		page++
	}

	if page > total {
		res.Done = true
		w.logDone(res, start)
		return res, nil
	}

	w.logger.Debug().
		Int("from", page).
		Int("total_pages", total).
		Int("workers", w.config.MaxConcurrency).
		Msg("Fanning out remaining pages")

	done, err := w.pool(ctx, page, total, &res)
	res.Done = done
	if err != nil {
		w.logger.Warn().
			Err(err).
			Int("fetched_pages", res.Fetched).
			Int("total_pages", total).
			Msg("Walk stopped early - returning partial results")
		return res, err
	}

	w.logDone(res, start)
	return res, nil
}

// pool fetches pages [from, total] with MaxConcurrency workers. It reports
// whether the end of the collection was reached.
func (w *Walker) pool(parent context.Context, from, total int, res *Result) (bool, error) {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	pages := make(chan int)
	go func() {
		defer close(pages)
		for p := from; p <= total; p++ {
			select {
			case pages <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		last     bool
		fetched  int
	)

	workers := min(w.config.MaxConcurrency, total-from+1)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			processed := 0

			for p := range pages {
				if ctx.Err() != nil {
					return
				}

				pr, err := w.fetch(ctx, p)

				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("page %d: %w", p, err)
						cancel(err)
					}
				} else {
					res.record(p)
					fetched++
					processed++
					// The collection shrank below the reported total.
					last = last || pr.Last
				}
				mu.Unlock()
			}

			if processed > 0 {
				w.logger.Debug().
					Int("worker_id", workerID).
					Int("pages_processed", processed).
					Msg("Worker completed")
			}
		}(i)
	}
	wg.Wait()

	switch {
	case firstErr != nil:
		return false, firstErr
	case last, fetched == total-from+1:
		return true, nil
	case parent.Err() != nil:
		return false, parent.Err()
	default:
		return false, nil
	}
}

func (w *Walker) fetch(ctx context.Context, page int) (PageResult, error) {
	pageCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()
	return w.fetcher.FetchPage(pageCtx, page)
}

func (w *Walker) logDone(res Result, start time.Time) {
	w.logger.Debug().
		Int("pages", res.Fetched).
		Int("highest", res.Highest).
		Dur("duration", time.Since(start)).
		Msg("Walk complete")
}

func (r *Result) record(page int) {
	r.Fetched++
	if page > r.Highest {
		r.Highest = page
	}
}
