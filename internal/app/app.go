// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/21prnv/InfluenceIq/internal/auth"
	"github.com/21prnv/InfluenceIq/internal/browser"
	"github.com/21prnv/InfluenceIq/internal/config"
	"github.com/21prnv/InfluenceIq/internal/diagnostics"
	"github.com/21prnv/InfluenceIq/internal/engine"
	"github.com/21prnv/InfluenceIq/internal/proxy"
	"github.com/21prnv/InfluenceIq/internal/ratelimit"
	"github.com/21prnv/InfluenceIq/internal/sink"
	"github.com/21prnv/InfluenceIq/internal/supervisor"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	RateLimiter ratelimit.RateLimiter
	Sessions    auth.Store
	Launcher    browser.Launcher
	Proxies     *proxy.Pool
	Notifier    *sink.Notifier
	Capturer    *diagnostics.Capturer
	logFile     io.Closer
	startTime   time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Creates the rate limiter for site-wide navigation pacing
//   - Opens the session store
//   - Creates the browser launcher and proxy pool
//   - Creates the completion notifier
//
// If any step fails, an error is returned and no resources are allocated.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger, logFile := newLogger(cfg)
	log.Logger = logger

	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Str("log_file", cfg.LogFile).
		Msg("Logger initialized")

	store, err := auth.NewStore(cfg.SessionBackend, cfg.SessionDir)
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	logger.Debug().Str("backend", cfg.SessionBackend).Msg("Session store opened")

	rateLimiter := ratelimit.NewSiteLimiter(cfg.NavigationRPS, cfg.NavigationBurst)
	logger.Debug().
		Float64("navigation_rps", cfg.NavigationRPS).
		Int("navigation_burst", cfg.NavigationBurst).
		Msg("Rate limiter initialized")

	proxies := cfg.Proxies
	if cfg.Proxy != "" {
		proxies = append([]string{cfg.Proxy}, proxies...)
	}

	app := &Application{
		Config:      cfg,
		Logger:      &logger,
		RateLimiter: rateLimiter,
		Sessions:    store,
		Launcher:    &browser.ChromeLauncher{ChromePath: cfg.ChromePath, UserAgent: cfg.UserAgent},
		Proxies:     proxy.NewPool(proxies, proxy.DefaultCooldown),
		Notifier:    sink.NewNotifier(cfg.NotifyURL, cfg.NotifyTimeout),
		Capturer:    &diagnostics.Capturer{Dir: cfg.DebugDir, Timeout: diagnostics.DefaultTimeout},
		logFile:     logFile,
		startTime:   time.Now(),
	}

	logger.Debug().Int("proxies", app.Proxies.Len()).Msg("Application initialized successfully")
	return app, nil
}

// newLogger builds the global logger: console or JSON on stderr, teed into
// a rotating file when one is configured.
func newLogger(cfg *config.Config) (zerolog.Logger, io.Closer) {
	level := zerolog.InfoLevel
	switch cfg.LogLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	if cfg.JSONLog {
		out = os.Stderr
	}

	var closer io.Closer
	if cfg.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(out, file)
		closer = file
	}

	return zerolog.New(out).With().Timestamp().Logger(), closer
}

// AuthOptions are the session settings shared by probe and login.
func (a *Application) AuthOptions() auth.Options {
	c := a.Config
	return auth.Options{
		BaseURL:         c.BaseURL,
		RequiredCookies: c.RequiredCookies,
		StepTimeout:     c.StepTimeout,
		LoginTimeout:    c.LoginTimeout,
		LoginSettle:     c.LoginSettle,
	}
}

// SessionManager owns the configured session for one run.
func (a *Application) SessionManager() *auth.Manager {
	c := a.Config
	creds := auth.Credentials{Username: c.Username, Password: c.Password}
	return auth.NewManager(a.Sessions, c.SessionName, creds, a.AuthOptions(), c.SessionDir)
}

// NavigationOptions bounds every step of a run.
func (a *Application) NavigationOptions() engine.Options {
	c := a.Config
	return engine.Options{
		BaseURL:            c.BaseURL,
		StepTimeout:        c.StepTimeout,
		ItemTimeout:        c.ItemTimeout,
		ProfileWaitTimeout: c.ProfileWaitTimeout,
		ErrorPageWait:      c.ErrorPageWait,
		IndexSettle:        c.IndexSettle,
		ItemSettle:         c.ItemSettle,
		CommentSettle:      c.CommentSettle,
		ScrollSettle:       c.ScrollSettle,
		ScrollIterations:   c.ScrollIterations,
		MaxMediaItems:      c.MaxMediaItems,
		MaxComments:        c.MaxComments,
		WallMarkers:        c.WallMarkers,
	}
}

// Unit assembles a scrape unit from the application's shared state.
func (a *Application) Unit(observer engine.Observer) *supervisor.Unit {
	return &supervisor.Unit{
		Launcher:   a.Launcher,
		Sessions:   a.SessionManager(),
		Limiter:    a.RateLimiter,
		Navigation: a.NavigationOptions(),
		Capturer:   a.Capturer,
		Headless:   a.Config.BrowserHeadless,
		Observer:   observer,
	}
}

// Supervisor builds the configured supervisor. workerArgs are prepended to
// the worker command line when runs are isolated in processes.
func (a *Application) Supervisor(observer engine.Observer, workerArgs []string) (*supervisor.Supervisor, error) {
	var iso supervisor.Isolation
	switch a.Config.Isolation {
	case "inprocess":
		iso = &supervisor.InProcess{Unit: *a.Unit(observer), Grace: supervisor.DefaultGrace}
	default:
		p, err := supervisor.NewProcessIsolation(workerArgs...)
		if err != nil {
			return nil, err
		}
		iso = p
	}

	return &supervisor.Supervisor{
		Isolation: iso,
		OutputDir: a.Config.OutputDir,
		Budget:    a.Config.Budget,
		Proxies:   a.Proxies,
		Notifier:  a.Notifier,
	}, nil
}

// Close gracefully shuts down the application and all its resources.
//
// Any errors during shutdown are logged but do not prevent other shutdown steps.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Shutting down application")

	a.Notifier.Close()

	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	}
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
