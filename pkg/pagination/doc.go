// Package pagination walks the remaining pages of a paginated collection.
//
// Discogs reports the page count in the pagination block of every response,
// but a walk may start before any page has been seen. The walker therefore
// fetches sequentially until the total is known and, when allowed, fans the
// rest of the range out to a worker pool.
//
// Example usage:
//
//	w := pagination.NewWalker(fetcher, pagination.DefaultConfig())
//	res, err := w.Walk(ctx, 2, 0)
//
// The walker:
//   - Stops at the page the fetcher reports as last
//   - Never fetches past a known total
//   - Cancels outstanding pages on the first error
//   - Returns the pages fetched so far together with the error
package pagination
