package collection

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"sync"
	"time"

	"github.com/Sternrassler/vinyl-library/pkg/pagination"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Aggregator pages through one collection folder and keeps the merged,
// deduplicated result for a single browsing session.
//
// All state is guarded by one mutex and network I/O happens outside it.
// Each fetch is tagged with the session generation; Dispose and Reset start
// a new generation, so results of an ended session are dropped.
type Aggregator struct {
	cfg          Config
	src          Source
	baseLogger   zerolog.Logger
	walkerConfig pagination.Config

	mu          sync.Mutex
	logger      zerolog.Logger
	items       *ItemSet
	state       PaginationState
	fetched     map[int]struct{}
	contiguous  int
	highest     int
	query       string
	pageLoading bool
	pageDone    chan struct{}
	bulkLoading bool
	lastErr     error

	bulkComplete bool
	bulkErr      error

	generation uint64
	sessionID  uuid.UUID
	sessionCtx context.Context
	endSession context.CancelFunc
	disposed   bool

	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// New creates an Aggregator for the folder described by cfg.
func New(cfg Config, src Source, opts ...Option) (*Aggregator, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if src == nil {
		return nil, errors.New("source is required")
	}

	a := &Aggregator{
		cfg:          cfg,
		src:          src,
		baseLogger:   log.With().Str("component", "collection").Logger(),
		walkerConfig: pagination.DefaultConfig(),
		subscribers:  make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.startSessionLocked()
	return a, nil
}

// startSessionLocked clears all session state. Callers hold mu or own a
// exclusively.
func (a *Aggregator) startSessionLocked() {
	a.generation++
	a.sessionID = uuid.New()
	a.sessionCtx, a.endSession = context.WithCancel(context.Background())

	a.items = NewItemSet()
	a.state = PaginationState{CurrentPage: 1}
	a.fetched = make(map[int]struct{})
	a.contiguous = 0
	a.highest = 0
	a.query = ""
	a.pageLoading = false
	a.pageDone = nil
	a.bulkLoading = false
	a.lastErr = nil
	a.bulkComplete = false
	a.bulkErr = nil

	a.logger = a.baseLogger.With().Str("session_id", a.sessionID.String()).Logger()
}

// Config returns the normalized configuration.
func (a *Aggregator) Config() Config {
	return a.cfg
}

// bindLocked ties ctx to the current session so that ending the session
// cancels in-flight requests.
func (a *Aggregator) bindLocked(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(a.sessionCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// pageOutcome is what a single fetch taught us.
type pageOutcome struct {
	found      bool
	empty      bool
	totalPages int
}

// FetchPage fetches page p and merges its items. A 404 marks the collection
// as exhausted and is not an error. Other failures are returned as
// *FetchError. Unlike LoadNextPage it takes no guard and does not move
// CurrentPage.
func (a *Aggregator) FetchPage(ctx context.Context, p int) error {
	if p < 1 {
		return fmt.Errorf("invalid page %d", p)
	}

	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return ErrDisposed
	}
	gen := a.generation
	ctx, cancel := a.bindLocked(ctx)
	a.mu.Unlock()
	defer cancel()

	_, err := a.fetch(ctx, gen, p)
	if errors.Is(err, errStale) {
		return nil
	}
	a.notify()
	return err
}

// fetch performs one page request for session gen and applies the result.
func (a *Aggregator) fetch(ctx context.Context, gen uint64, p int) (pageOutcome, error) {
	start := time.Now()
	resp, err := a.src.Fetch(ctx, PageRequest{
		Username: a.cfg.Username,
		FolderID: a.cfg.FolderID,
		Page:     p,
		PerPage:  a.cfg.PerPage,
	})
	pageFetchDuration.Observe(time.Since(start).Seconds())
	if err == nil && resp == nil {
		err = errors.New("source returned no response")
	}

	var page decodedPage
	if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		page, err = decodePage(resp.Body)
		if err != nil {
			err = &FetchError{Page: p, StatusCode: resp.StatusCode, Err: err}
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.generation {
		pagesFetchedTotal.WithLabelValues("stale").Inc()
		a.logger.Debug().Int("page", p).Msg("Dropping page of ended session")
		return pageOutcome{}, errStale
	}

	switch {
	case err != nil:
		pagesFetchedTotal.WithLabelValues("error").Inc()
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{Page: p, Err: err}
		}
		return pageOutcome{}, err

	case resp.StatusCode == http.StatusNotFound:
		pagesFetchedTotal.WithLabelValues("not_found").Inc()
		if !a.state.TotalPagesKnown {
			a.state.TotalPages, a.state.TotalPagesKnown = p-1, true
		}
		a.checkExhaustedLocked()
		a.logger.Debug().
			Int("page", p).
			Int("total_pages", a.state.TotalPages).
			Msg("Page past the end of the collection")
		return pageOutcome{totalPages: a.state.TotalPages}, nil

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		pagesFetchedTotal.WithLabelValues("error").Inc()
		return pageOutcome{}, &FetchError{
			Page:       p,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
	}

	pagesFetchedTotal.WithLabelValues("ok").Inc()
	added := a.items.Merge(page.Items)
	itemsMergedTotal.Add(float64(added))

	if page.PagesKnown && !a.state.TotalPagesKnown {
		a.state.TotalPages, a.state.TotalPagesKnown = page.TotalPages, true
	}
	if page.ItemsKnown && !a.state.TotalItemsKnown {
		a.state.TotalItems, a.state.TotalItemsKnown = page.TotalItems, true
	}
	a.markFetchedLocked(p)
	a.checkExhaustedLocked()

	a.logger.Debug().
		Int("page", p).
		Int("received", len(page.Items)).
		Int("added", added).
		Int("loaded", a.items.Len()).
		Msg("Merged collection page")

	return pageOutcome{
		found:      true,
		empty:      len(page.Items) == 0,
		totalPages: a.state.TotalPages,
	}, nil
}

// markFetchedLocked records p as merged and moves the contiguous cursor past
// every page that is now fetched without a gap.
func (a *Aggregator) markFetchedLocked(p int) {
	a.fetched[p] = struct{}{}
	a.highest = max(a.highest, p)
	for {
		if _, ok := a.fetched[a.contiguous+1]; !ok {
			return
		}
		a.contiguous++
	}
}

// checkExhaustedLocked marks the collection exhausted once every page up to
// TotalPages has been fetched.
func (a *Aggregator) checkExhaustedLocked() {
	if a.state.TotalPagesKnown && a.contiguous >= a.state.TotalPages {
		a.state.Exhausted = true
	}
}

// nextPageLocked returns the first unfetched page after CurrentPage. When
// that lies past the known end, the lowest gap is returned instead.
func (a *Aggregator) nextPageLocked() int {
	p := a.state.CurrentPage + 1
	for {
		if _, ok := a.fetched[p]; !ok {
			break
		}
		p++
	}
	if a.state.TotalPagesKnown && p > a.state.TotalPages {
		p = a.contiguous + 1
	}
	return p
}

// LoadFirstPage loads page 1, the initial view of a session. It is a no-op
// while another load is running.
func (a *Aggregator) LoadFirstPage(ctx context.Context) error {
	return a.loadPage(ctx, func() int { return 1 }, false)
}

// LoadNextPage loads the first page after CurrentPage that has not been
// fetched yet and advances CurrentPage to it. It is a no-op while a page or
// bulk load is running or once the collection is exhausted. Errors are kept
// in Snapshot().LastError and returned; there is no retry.
func (a *Aggregator) LoadNextPage(ctx context.Context) error {
	return a.loadPage(ctx, a.nextPageLocked, true)
}

func (a *Aggregator) loadPage(ctx context.Context, next func() int, advance bool) error {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return ErrDisposed
	}
	if a.pageLoading || a.bulkLoading || (advance && a.state.Exhausted) {
		a.mu.Unlock()
		return nil
	}

	page := next()
	gen := a.generation
	logger := a.logger
	done := make(chan struct{})
	a.pageLoading = true
	a.pageDone = done
	a.lastErr = nil
	ctx, cancel := a.bindLocked(ctx)
	a.mu.Unlock()
	defer cancel()
	defer close(done)

	a.notify()

	out, err := a.fetch(ctx, gen, page)
	if errors.Is(err, errStale) {
		return nil
	}

	a.mu.Lock()
	if gen != a.generation {
		a.mu.Unlock()
		return nil
	}
	a.pageLoading = false
	a.pageDone = nil
	if err != nil {
		a.lastErr = err
	} else if advance && out.found {
		a.state.CurrentPage = max(a.state.CurrentPage, page)
	}
	a.mu.Unlock()

	if err != nil {
		logger.Warn().Err(err).Int("page", page).Msg("Page load failed")
	}
	a.notify()
	return err
}

// LoadAllRemaining fetches every page that has not been fetched yet, from
// the lowest gap to the end of the collection. It waits for a running page
// load to settle first. Failures end the walk early and are logged, not
// returned; pages merged before a failure are kept and the failure is
// reported in Snapshot().BulkError. CurrentPage is left alone. When it
// returns the collection is marked exhausted. It is a no-op while a bulk
// load runs or once exhausted.
func (a *Aggregator) LoadAllRemaining(ctx context.Context) {
	a.mu.Lock()
	if a.disposed || a.bulkLoading || a.state.Exhausted {
		a.mu.Unlock()
		return
	}
	a.bulkLoading = true
	a.bulkComplete = false
	a.bulkErr = nil
	gen := a.generation
	logger := a.logger
	wait := a.pageDone
	ctx, cancel := a.bindLocked(ctx)
	a.mu.Unlock()
	defer cancel()

	a.notify()

	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
		}
	}

	a.mu.Lock()
	if gen != a.generation {
		a.mu.Unlock()
		return
	}
	from := a.contiguous + 1
	total := 0
	if a.state.TotalPagesKnown {
		total = a.state.TotalPages
	}
	exhausted := a.state.Exhausted
	a.mu.Unlock()

	start := time.Now()
	var res pagination.Result
	var err error
	walked := false
	if !exhausted && (total == 0 || from <= total) && ctx.Err() == nil {
		walked = true
		walker := pagination.NewWalker(pagination.PageFetcherFunc(func(ctx context.Context, p int) (pagination.PageResult, error) {
			a.mu.Lock()
			stale := gen != a.generation
			_, seen := a.fetched[p]
			known := a.state.TotalPages
			a.mu.Unlock()
			if stale {
				return pagination.PageResult{}, errStale
			}
			if seen {
				return pagination.PageResult{TotalPages: known}, nil
			}

			out, err := a.fetch(ctx, gen, p)
			if err != nil {
				return pagination.PageResult{}, err
			}
			a.notify()
			return pagination.PageResult{
				TotalPages: out.totalPages,
				// With no totals an empty page is the end.
				Last: !out.found || (out.empty && out.totalPages == 0),
			}, nil
		}), a.walkerConfig)
		res, err = walker.Walk(ctx, from, total)
	} else {
		err = ctx.Err()
	}

	a.mu.Lock()
	if gen != a.generation {
		a.mu.Unlock()
		return
	}
	a.bulkLoading = false
	a.state.Exhausted = true
	a.bulkComplete = err == nil && (res.Done || !walked)
	a.bulkErr = err
	loaded := a.items.Len()
	a.mu.Unlock()

	if err != nil {
		bulkLoadsTotal.WithLabelValues("partial").Inc()
		logger.Warn().
			Err(err).
			Int("from", from).
			Int("pages", res.Fetched).
			Int("loaded", loaded).
			Msg("Bulk load stopped early - keeping partial results")
	} else {
		bulkLoadsTotal.WithLabelValues("complete").Inc()
		logger.Info().
			Int("from", from).
			Int("pages", res.Fetched).
			Int("loaded", loaded).
			Dur("duration", time.Since(start)).
			Msg("Bulk load complete")
	}
	a.notify()
}

// SetSearchQuery sets the filter applied by VisibleItems. A search must see
// the whole collection, so when q is non-empty and pages remain and no bulk
// load runs, the returned Task loads the rest. Otherwise it returns nil.
func (a *Aggregator) SetSearchQuery(q string) Task {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return nil
	}
	a.query = q
	trigger := q != "" && !a.state.Exhausted && !a.bulkLoading
	a.mu.Unlock()

	a.notify()

	if !trigger {
		return nil
	}
	return a.LoadAllRemaining
}

// VisibleItems yields the items matching the search query, ordered by
// SortKey. Every iteration reads the current state afresh.
func (a *Aggregator) VisibleItems() iter.Seq[Item] {
	return func(yield func(Item) bool) {
		a.mu.Lock()
		items, query := a.items.Items(), a.query
		a.mu.Unlock()

		for _, it := range Visible(items, query) {
			if !yield(it) {
				return
			}
		}
	}
}

// Snapshot returns a copy of the current state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aggregator) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID:   a.sessionID.String(),
		Pagination:  a.state,
		HighestPage: a.highest,
		Loaded:      a.items.Len(),
		Query:       a.query,
		PageLoading: a.pageLoading,
		BulkLoading: a.bulkLoading,
		LastError:   a.lastErr,

		BulkComplete: a.bulkComplete,
		BulkError:    a.bulkErr,
	}
}

// Subscribe registers fn to be called with a snapshot after every state
// change. fn runs on the goroutine that made the change and must not block.
// The returned function removes the subscription.
func (a *Aggregator) Subscribe(fn func(Snapshot)) (cancel func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextSubID
	a.nextSubID++
	a.subscribers[id] = fn

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subscribers, id)
	}
}

func (a *Aggregator) notify() {
	a.mu.Lock()
	snap := a.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(a.subscribers))
	for _, fn := range a.subscribers {
		subs = append(subs, fn)
	}
	a.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Reset ends the current session and starts an empty one. Subscribers stay
// registered.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.endSession()
	a.startSessionLocked()
	a.mu.Unlock()

	a.notify()
}

// Dispose ends the session. Results still in flight are dropped and every
// later operation is a no-op or returns ErrDisposed.
func (a *Aggregator) Dispose() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return
	}
	a.disposed = true
	a.generation++
	a.endSession()
	a.pageLoading = false
	a.bulkLoading = false
	a.subscribers = make(map[int]func(Snapshot))
}
