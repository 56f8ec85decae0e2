// Package collection aggregates a Discogs collection folder page by page.
//
// An Aggregator owns one browsing session: the deduplicated item set, the
// pagination cursor, the page and item totals learned from upstream, the
// search query and the background "load all" process. Presentation code
// reads derived state through Snapshot, VisibleItems and Subscribe and never
// touches the network itself.
//
// Pages come from a Source. HTTPSource talks to the collection proxy and
// ClientSource calls Discogs directly through pkg/client.
//
// Example usage:
//
//	agg, err := collection.New(collection.DefaultConfig("jschow"), collection.NewHTTPSource(proxyURL, nil))
//	if err != nil {
//		return err
//	}
//	defer agg.Dispose()
//
//	if err := agg.LoadFirstPage(ctx); err != nil {
//		return err
//	}
//	if task := agg.SetSearchQuery("air"); task != nil {
//		go task(ctx)
//	}
//	for item := range agg.VisibleItems() {
//		fmt.Println(item.Artists, item.Title)
//	}
package collection
