package collection

import "context"

// PaginationState tracks how far through the collection a session has got.
// Totals are learned once and never change within a session.
type PaginationState struct {
	// CurrentPage is the last page loaded page by page. It starts at 1 and
	// is not moved by bulk loads.
	CurrentPage int

	TotalPages      int
	TotalPagesKnown bool
	TotalItems      int
	TotalItemsKnown bool

	// Exhausted is set once no further pages remain: every page up to
	// TotalPages has been fetched, or a bulk load has finished.
	Exhausted bool
}

// Snapshot is a consistent copy of an Aggregator's state.
type Snapshot struct {
	SessionID  string
	Pagination PaginationState

	// HighestPage is the highest page fetched successfully by any path.
	// Lower pages may still be missing when pages were fetched out of order.
	HighestPage int

	// Loaded is the number of distinct items merged so far.
	Loaded int

	Query       string
	PageLoading bool
	BulkLoading bool

	// LastError is the error of the last page-by-page load, cleared when
	// the next one starts.
	LastError error

	// BulkComplete is set when the last bulk load reached the end of the
	// collection without a failure. BulkError holds the failure that stopped
	// it early. Both are cleared when a bulk load starts.
	BulkComplete bool
	BulkError    error
}

// Task is follow-up work returned by a state update. The caller decides
// where and when to run it.
type Task func(ctx context.Context)
