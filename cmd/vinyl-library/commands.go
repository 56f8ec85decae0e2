package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/Sternrassler/vinyl-library/pkg/collection"
	"gopkg.in/yaml.v3"
)

type ListCmd struct {
	Search string `short:"s" help:"Only show releases whose artist or title contains this text (loads every page)"`
	All    bool   `short:"a" help:"Load every page"`
	Pages  int    `short:"n" default:"1" help:"Number of pages to load"`
}

func (c *ListCmd) Run(g *Globals, ctx context.Context) error {
	cancel := g.Agg.Subscribe(func(s collection.Snapshot) {
		g.Logger.Debug().
			Int("loaded", s.Loaded).
			Int("highest_page", s.HighestPage).
			Bool("bulk_loading", s.BulkLoading).
			Msg("Collection updated")
	})
	defer cancel()

	if err := loadPages(ctx, g.Agg, c.Pages); err != nil {
		return err
	}
	if c.All {
		g.Agg.LoadAllRemaining(ctx)
	}
	if task := g.Agg.SetSearchQuery(c.Search); task != nil {
		task(ctx)
	}

	items := slices.Collect(g.Agg.VisibleItems())
	_, err := fmt.Fprint(g.Out, g.Render.RenderCollection(items, g.Agg.Snapshot()))
	return err
}

// loadPages loads the first page and then up to n-1 more, stopping early
// once the collection is exhausted.
func loadPages(ctx context.Context, agg *collection.Aggregator, n int) error {
	if err := agg.LoadFirstPage(ctx); err != nil {
		return err
	}
	for range n - 1 {
		if agg.Snapshot().Pagination.Exhausted {
			break
		}
		if err := agg.LoadNextPage(ctx); err != nil {
			return err
		}
	}
	return nil
}

type ExportCmd struct{}

type exportDoc struct {
	Username string       `yaml:"username"`
	Folder   int          `yaml:"folder"`
	Complete bool         `yaml:"complete"`
	Items    []exportItem `yaml:"items"`
}

type exportItem struct {
	ID      int64  `yaml:"id"`
	Artists string `yaml:"artists"`
	Title   string `yaml:"title"`
	Year    string `yaml:"year,omitempty"`
	Cover   string `yaml:"cover,omitempty"`
}

func (c *ExportCmd) Run(g *Globals, ctx context.Context) error {
	if err := g.Agg.LoadFirstPage(ctx); err != nil {
		return err
	}
	g.Agg.LoadAllRemaining(ctx)

	snap := g.Agg.Snapshot()
	cfg := g.Agg.Config()
	doc := exportDoc{
		Username: cfg.Username,
		Folder:   cfg.FolderID,
		Complete: snap.BulkComplete,
	}
	for item := range g.Agg.VisibleItems() {
		doc.Items = append(doc.Items, exportItem{
			ID:      item.ID,
			Artists: item.Artists,
			Title:   item.Title,
			Year:    item.Year,
			Cover:   item.Cover,
		})
	}

	enc := yaml.NewEncoder(g.Out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}
	return enc.Close()
}
