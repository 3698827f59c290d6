package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/regardlab/regard/internal/api"
	"github.com/regardlab/regard/internal/config"
	"github.com/regardlab/regard/internal/gaze"
	"github.com/regardlab/regard/internal/localstore"
	"github.com/regardlab/regard/internal/logging"
	"github.com/regardlab/regard/internal/prefs"
	"github.com/regardlab/regard/internal/state"
	"github.com/regardlab/regard/internal/ui"
)

const initialSyncTimeout = 5 * time.Second

// Options configure the regard application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/regard/prefs.toml
	APIURL     string // overrides the configured backend
	GazeSource string // overrides the configured gaze feed
	ExportDir  string
	Verbose    bool
}

// Runtime holds the wired components shared by the TUI and the scripted
// commands.
type Runtime struct {
	Config     config.Config
	Prefs      prefs.Prefs
	Logger     *zap.Logger
	Storage    *localstore.SQLite
	Client     *api.Client
	Store      *state.Store
	Controller *Controller
}

// Bootstrap loads configuration and opens storage, the backend client and
// the state store.
func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(opts.APIURL); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(opts.GazeSource); v != "" {
		cfg.GazeSource = v
	}
	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}

	logger, err := logging.New(cfg.LogPath(), level)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	storage, err := localstore.OpenSQLite(cfg.StoragePath())
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	client, err := api.NewClient(cfg.APIURL, storage, api.WithLogger(logger.Named("api")))
	if err != nil {
		_ = storage.Close()
		_ = logger.Sync()
		return nil, fmt.Errorf("init api client: %w", err)
	}

	store := state.New(storage, state.WithLogger(logger.Named("state")))
	ctrl := NewController(store, client,
		WithControllerLogger(logger.Named("app")),
		WithPrefsPath(opts.PrefsPath),
		WithExportDir(opts.ExportDir),
	)

	logger.Debug("bootstrapped",
		zap.String("api_url", cfg.APIURL),
		zap.String("storage", cfg.StoragePath()),
	)

	return &Runtime{
		Config:     cfg,
		Prefs:      prefs.Load(opts.PrefsPath),
		Logger:     logger,
		Storage:    storage,
		Client:     client,
		Store:      store,
		Controller: ctrl,
	}, nil
}

// Close stops the store timers and releases storage.
func (r *Runtime) Close() error {
	r.Store.Close()
	err := r.Storage.Close()
	_ = r.Logger.Sync()
	return err
}

// Run boots the regard TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	rt, err := Bootstrap(opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl := rt.Controller
	if rt.Store.State().IsAuthenticated && !rt.Client.IsAuthenticated() {
		// A snapshot from an expired session; the tokens are gone.
		rt.Store.ClearPatient()
	}

	// Populate the store before the first frame.
	syncCtx, cancelSync := context.WithTimeout(ctx, initialSyncTimeout)
	_ = ctrl.sync(syncCtx)
	cancelSync()

	poller := StartPoller(ctx, ctrl, rt.Config.PollEvery)

	if src := rt.Config.GazeSource; src != "" {
		// Not awaited: a read parked on a quiet FIFO or stdin only returns
		// on the next line or EOF.
		FollowGaze(ctx, ctrl, src, rt.Logger.Named("gaze"))
	}

	err = ui.Run(ui.Options{
		Context:      ctx,
		Actions:      ctrl,
		Store:        rt.Store,
		ThemeName:    rt.Prefs.Theme,
		PrefsPath:    opts.PrefsPath,
		LastUsername: rt.Prefs.LastUsername,
		Logger:       rt.Logger.Named("ui"),
	})

	cancel()
	<-poller
	return err
}

// FollowGaze streams samples from source into the controller until ctx is
// cancelled or the source ends. The returned channel is closed on exit.
func FollowGaze(ctx context.Context, ctrl *Controller, source string, logger *zap.Logger) <-chan struct{} {
	logger = logging.OrNop(logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r, err := gaze.Open(source)
		if err != nil {
			_ = ctrl.fail("open gaze feed", err)
			return
		}
		defer r.Close()

		stats, err := gaze.Stream(ctx, r, func(s gaze.Sample) error {
			ctrl.FeedGaze(s)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("gaze feed stopped", zap.Error(err))
		}
		logger.Info("gaze feed closed",
			zap.Int("samples", stats.Samples),
			zap.Int("skipped", stats.Skipped),
		)
	}()
	return done
}
