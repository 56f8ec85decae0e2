package collection

import (
	"errors"

	"github.com/Sternrassler/vinyl-library/pkg/pagination"
	"github.com/rs/zerolog"
)

const (
	// MaxPerPage is the largest page size Discogs serves.
	MaxPerPage = 100

	// DefaultPerPage keeps round trips to a minimum.
	DefaultPerPage = MaxPerPage

	// AllFolderID is the folder that contains every release of a user.
	AllFolderID = 0
)

// Config selects the collection folder an Aggregator pages through.
type Config struct {
	Username string
	FolderID int

	// PerPage is capped at MaxPerPage. 0 selects DefaultPerPage.
	PerPage int
}

// DefaultConfig returns the "All" folder of username at the default page size.
func DefaultConfig(username string) Config {
	return Config{
		Username: username,
		FolderID: AllFolderID,
		PerPage:  DefaultPerPage,
	}
}

func (c Config) normalize() (Config, error) {
	if c.Username == "" {
		return c, errors.New("username is required")
	}
	if c.FolderID < 0 {
		return c, errors.New("folder id must not be negative")
	}
	if c.PerPage <= 0 {
		c.PerPage = DefaultPerPage
	}
	c.PerPage = min(c.PerPage, MaxPerPage)
	return c, nil
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithLogger replaces the component logger. Each session adds its id.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Aggregator) {
		a.baseLogger = logger
	}
}

// WithWalkerConfig configures the bulk loader. Concurrency above 1 fetches
// pages in parallel once the page count is known.
func WithWalkerConfig(cfg pagination.Config) Option {
	return func(a *Aggregator) {
		a.walkerConfig = cfg
	}
}
