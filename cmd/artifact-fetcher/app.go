package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/artifact-fetcher/internal/adapter/filesystem"
	"github.com/vertextoedge/artifact-fetcher/internal/adapter/httpclient"
	"github.com/vertextoedge/artifact-fetcher/internal/adapter/sqlite"
	"github.com/vertextoedge/artifact-fetcher/internal/config"
	"github.com/vertextoedge/artifact-fetcher/internal/logger"
	"github.com/vertextoedge/artifact-fetcher/internal/port"
	"github.com/vertextoedge/artifact-fetcher/internal/service/batch"
	"github.com/vertextoedge/artifact-fetcher/internal/service/fetcher"
	"github.com/vertextoedge/artifact-fetcher/internal/service/mirror"
	"github.com/vertextoedge/artifact-fetcher/internal/service/verifier"
	"github.com/vertextoedge/artifact-fetcher/internal/util/retry"
)

// app holds the components shared by every command
type app struct {
	configPath string
	logLevel   string
	noProgress bool

	cfg    *config.Config
	logger *zap.Logger
	client *httpclient.Client
	fs     *filesystem.Manager
}

// init loads configuration and builds the shared client
func (a *app) init(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger.GetZapLogger()
	a.fs = filesystem.NewManager()
	a.client = httpclient.New(httpclient.Config{
		ConnectTimeout:      cfg.HTTP.GetConnectTimeout(),
		ReadTimeout:         cfg.HTTP.GetReadTimeout(),
		UserAgent:           cfg.HTTP.UserAgent,
		MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConnsPerHost,
	})

	a.logger.Debug("configuration loaded",
		zap.String("version", version),
		zap.String("config", a.configPath),
		zap.Int("segments", cfg.Transfer.Segments))
	return nil
}

func (a *app) fetcher() *fetcher.Fetcher {
	f := fetcher.New(a.client, a.fs, a.logger, fetcher.Options{
		Segments: a.cfg.Transfer.Segments,
		Retry: retry.Policy{
			MaxAttempts:   a.cfg.Transfer.MaxAttempts,
			Backoff:       retry.Linear(a.cfg.Transfer.GetBackoff()),
			MaxRetryAfter: a.cfg.Transfer.GetMaxRetryAfter(),
			OnRetry: func(attempt int, err error, delay time.Duration) {
				a.logger.Debug("retrying segment", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
			},
		},
		SegmentInterval: a.cfg.Progress.GetSegmentInterval(),
		StreamInterval:  a.cfg.Progress.GetStreamInterval(),
	})
	return f.WithSpaceChecker(filesystem.NewSpaceManager(a.fs, a.cfg.Transfer.GetReserveBytes()))
}

func (a *app) verifier() *verifier.Verifier {
	return verifier.New(a.fs)
}

func (a *app) mirrors() *mirror.Selector {
	return mirror.NewSelector(a.client, a.logger)
}

// openHistory opens the history database, or returns nil when disabled
func (a *app) openHistory() (*sqlite.Store, error) {
	if a.cfg.Database.Path == "" {
		return nil, nil
	}
	store, err := sqlite.Open(a.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return store, nil
}

// runner builds a batch runner. The returned func finishes the last
// progress bar and closes history.
func (a *app) runner() (*batch.Runner, func(), error) {
	r := batch.NewRunner(a.fetcher(), a.verifier(), a.fs, a.logger).WithMirrors(a.mirrors())

	var current *barObserver
	if !a.noProgress {
		r.Progress = func(art batch.Artifact) port.ProgressObserver {
			if current != nil {
				current.Finish()
			}
			current = newBarObserver(art.DisplayName())
			return current
		}
	}

	store, err := a.openHistory()
	if err != nil {
		return nil, nil, err
	}
	if store != nil {
		r.WithHistory(store)
	}

	var once sync.Once
	done := func() {
		once.Do(func() {
			if current != nil {
				current.Finish()
			}
			if store != nil {
				store.Close()
			}
		})
	}
	return r, done, nil
}
