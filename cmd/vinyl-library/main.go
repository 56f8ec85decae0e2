// Command vinyl-library browses a Discogs collection from the terminal,
// through the collection proxy or directly against Discogs.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/vinyl-library/pkg/client"
	"github.com/Sternrassler/vinyl-library/pkg/collection"
	"github.com/Sternrassler/vinyl-library/pkg/logging"
	"github.com/Sternrassler/vinyl-library/pkg/pagination"
	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
)

type CLI struct {
	List   ListCmd   `cmd:"" default:"withargs" aliases:"ls" help:"List the collection"`
	Export ExportCmd `cmd:"" help:"Load the whole collection and write it as YAML"`

	Profile     string `short:"p" type:"path" help:"YAML profile with default settings"`
	Proxy       string `env:"VINYL_PROXY" help:"Collection proxy base URL"`
	User        string `short:"u" env:"DISCOGS_USER" help:"Discogs username"`
	Folder      *int   `help:"Collection folder id (0 is the All folder)"`
	PerPage     int    `name:"per-page" help:"Releases per page (max 100)"`
	Concurrency int    `help:"Pages fetched in parallel when loading everything"`
	Direct      bool   `help:"Query Discogs directly with DISCOGS_TOKEN instead of the proxy"`
	Token       string `env:"DISCOGS_TOKEN" help:"Discogs token for --direct"`
	UserAgent   string `name:"user-agent" env:"USER_AGENT" default:"VinylLibrary/1.0 (+http://localhost:5173)" help:"User agent for --direct"`
	Verbose     bool   `short:"v" help:"Log page loads"`

	globals *Globals
}

type Globals struct {
	Agg    *collection.Aggregator
	Out    io.Writer
	Render *Renderer
	Logger zerolog.Logger
}

func (c *CLI) AfterApply(ctx *kong.Context) error {
	logCfg := logging.ConfigFromEnv()
	if os.Getenv(logging.EnvLevel) == "" {
		logCfg.Level = logging.LevelWarn
	}
	if c.Verbose {
		logCfg.Level = logging.LevelDebug
	}
	logCfg.Pretty = true
	logger := logging.Setup(logCfg)

	settings, err := c.settings()
	if err != nil {
		return err
	}

	src, err := c.source(settings)
	if err != nil {
		return err
	}

	walkerCfg := pagination.DefaultConfig()
	walkerCfg.MaxConcurrency = settings.Concurrency

	agg, err := collection.New(settings.collectionConfig(), src,
		collection.WithLogger(logger),
		collection.WithWalkerConfig(walkerCfg),
	)
	if err != nil {
		return err
	}

	c.globals = &Globals{
		Agg:    agg,
		Out:    os.Stdout,
		Render: NewRendererAuto(os.Stdout),
		Logger: logger,
	}
	ctx.Bind(c.globals)
	return nil
}

// settings merges defaults, the profile and the flags, later ones winning.
func (c *CLI) settings() (Profile, error) {
	s := defaultProfile()
	if c.Profile != "" {
		p, err := loadProfile(c.Profile)
		if err != nil {
			return s, err
		}
		s = s.merge(p)
	}
	s = s.merge(Profile{
		Proxy:       c.Proxy,
		Username:    c.User,
		Folder:      c.Folder,
		PerPage:     c.PerPage,
		Concurrency: c.Concurrency,
		Direct:      c.Direct,
	})
	if s.Username == "" {
		return s, fmt.Errorf("a username is required (--user, DISCOGS_USER or the profile)")
	}
	return s, nil
}

func (c *CLI) source(s Profile) (collection.Source, error) {
	if !s.Direct {
		return collection.NewHTTPSource(s.Proxy, nil), nil
	}
	if c.Token == "" {
		return nil, fmt.Errorf("--direct needs DISCOGS_TOKEN")
	}
	discogs, err := client.New(client.DefaultConfig(c.Token, c.UserAgent))
	if err != nil {
		return nil, fmt.Errorf("create discogs client: %w", err)
	}
	return collection.NewClientSource(discogs), nil
}

func (c *CLI) close() {
	if c.globals != nil {
		c.globals.Agg.Dispose()
	}
}

func main() {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("vinyl-library"),
		kong.Description("Browse a Discogs record collection"),
		kong.UsageOnError(),
		kong.BindTo(sigCtx, (*context.Context)(nil)),
	)
	err := ctx.Run()
	cli.close()
	ctx.FatalIfErrorf(err)
}
