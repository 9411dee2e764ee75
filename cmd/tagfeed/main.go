// ABOUTME: CLI entrypoint for tagfeed: serves the hashtag timeline and runs the background workers.
// ABOUTME: Also offers one-shot modes to approve a suggested hashtag and to print popular tags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/2389-research/tagfeed/config"
	"github.com/2389-research/tagfeed/logging"
	"github.com/2389-research/tagfeed/mastodon"
	"github.com/2389-research/tagfeed/store"
	"github.com/2389-research/tagfeed/timeline"
	"github.com/2389-research/tagfeed/web"
	"github.com/2389-research/tagfeed/worker"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

// popularTagsTTL bounds how stale the popular tag sidebar may be.
const popularTagsTTL = 10 * time.Minute

// options holds the parsed command-line flags. Empty strings mean "use the
// environment or default".
type options struct {
	bind         string
	dataDir      string
	settingsPath string
	approve      string
	popularTags  bool
	verbose      bool
	showVersion  bool
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		logging.Warnf("tagfeed: %v", err)
	}

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Printf("tagfeed %s\n", version)
		os.Exit(0)
	}

	os.Exit(run(opts))
}

// parseFlags parses args into options. Usage goes to stderr.
func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("tagfeed", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.bind, "bind", "", "Listen address (default: $TAGFEED_BIND or 127.0.0.1:1337)")
	fs.StringVar(&opts.dataDir, "data-dir", "", "Data directory (default: $TAGFEED_DATA_DIR or $XDG_DATA_HOME/tagfeed)")
	fs.StringVar(&opts.settingsPath, "settings", "", "Settings YAML file (default: $TAGFEED_SETTINGS or <data-dir>/settings.yaml)")
	fs.StringVar(&opts.approve, "approve", "", "Approve a suggested hashtag and exit")
	fs.BoolVar(&opts.popularTags, "popular-tags", false, "Print the popular tags and exit")
	fs.BoolVar(&opts.verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	fs.Usage = func() {
		printHelp(stderr, version)
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "error: unexpected argument %q\n", fs.Arg(0))
		return opts, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return opts, nil
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(opts options) (*config.Config, config.Settings, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, config.Settings{}, err
	}
	if opts.bind != "" {
		cfg.Bind = opts.bind
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	if opts.settingsPath != "" {
		cfg.SettingsPath = opts.settingsPath
	}
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = filepath.Join(cfg.DataDir, "settings.yaml")
	}
	if err := cfg.Validate(); err != nil {
		return nil, config.Settings{}, err
	}

	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		return nil, config.Settings{}, err
	}
	return cfg, settings, nil
}

// app holds the opened stores and the services built on them.
type app struct {
	cfg      *config.Config
	settings config.Settings
	index    *store.Index
	statuses *timeline.Service
	hashtags *timeline.Hashtags
}

// openApp opens the data directory, rebuilding the index from the status
// files when it is empty.
func openApp(cfg *config.Config, settings config.Settings) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	idx, err := store.OpenIndex(filepath.Join(cfg.DataDir, "index.db"))
	if err != nil {
		return nil, err
	}
	files := store.NewFiles(cfg.DataDir)

	count, err := idx.CountStatuses()
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	if count == 0 {
		if _, err := store.RebuildIndex(files, idx); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("rebuilding index: %w", err)
		}
	}

	client, err := mastodon.NewClient(cfg.InstanceURL, "tagfeed/"+version)
	if err != nil {
		_ = idx.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		settings: settings,
		index:    idx,
		statuses: timeline.NewService(client, idx, files, popularTagsTTL),
		hashtags: timeline.NewHashtags(idx),
	}, nil
}

func (a *app) Close() error {
	return a.index.Close()
}

// run dispatches to the selected mode. Returns the process exit code.
func run(opts options) int {
	logging.SetVerbose(opts.verbose)

	cfg, settings, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	a, err := openApp(cfg, settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer a.Close()

	switch {
	case opts.approve != "":
		if err := a.hashtags.Approve(opts.approve); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Printf("approved #%s\n", timeline.NormalizeHashtag(opts.approve))
		return 0

	case opts.popularTags:
		periods, err := a.statuses.PopularTags(context.Background(), []int{7, 30}, 10)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Println(renderPopularTags(periods))
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, a); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// serve runs the HTTP server and the workers until ctx is cancelled, then
// shuts both down.
func serve(ctx context.Context, a *app) error {
	srv, err := web.NewServer(web.ServerConfig{
		Addr:          a.cfg.Bind,
		InstanceURL:   a.cfg.InstanceURL,
		TimelineLimit: a.settings.TimelineStatusesCount,
		PopularWindow: a.settings.PopularWindow.Std(),
	}, a.hashtags, a.statuses)
	if err != nil {
		return err
	}
	httpServer := srv.HTTPServer()

	tracker := worker.NewTracker()
	tracker.Register(worker.NewTimelineUpdater(a.hashtags, a.statuses, a.settings.TimelineUpdateFrequency.Std()))
	tracker.Register(worker.NewStatusRefresher(a.statuses, a.settings))
	tracker.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("tagfeed: listening addr=%s instance=%s data_dir=%s", a.cfg.Bind, a.cfg.InstanceURL, a.cfg.DataDir)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("tagfeed: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tracker.Stop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Warnf("tagfeed: http shutdown err=%v", err)
		}
		if err := tracker.Wait(shutdownCtx); err != nil {
			logging.Warnf("tagfeed: workers did not stop in time err=%v", err)
		}
		return nil
	})
	return g.Wait()
}
