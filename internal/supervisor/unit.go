// Package supervisor runs scrape units in isolation under a time budget and
// turns every outcome into exactly one persisted result.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/21prnv/InfluenceIq/internal/browser"
	"github.com/21prnv/InfluenceIq/internal/diagnostics"
	"github.com/21prnv/InfluenceIq/internal/engine"
	"github.com/21prnv/InfluenceIq/internal/ratelimit"
	"github.com/21prnv/InfluenceIq/internal/reqctx"
	"github.com/21prnv/InfluenceIq/internal/sink"
	"github.com/21prnv/InfluenceIq/pkg/models"
)

// Job is one account to scrape.
type Job struct {
	Account string
	RunID   string
	// Output is the result file the run must leave behind.
	Output string
	Proxy  string
}

// Unit is one scrape of one account: it owns the browser handle from launch
// to release.
type Unit struct {
	Launcher   browser.Launcher
	Sessions   engine.SessionKeeper
	Limiter    ratelimit.RateLimiter
	Navigation engine.Options
	Capturer   *diagnostics.Capturer
	Headless   bool
	Observer   engine.Observer

	// OnHandle, if set, receives the handle right after launch so another
	// goroutine can force-release it.
	OnHandle func(browser.Handle)

	now func() time.Time
}

func (u *Unit) clock() time.Time {
	if u.now != nil {
		return u.now()
	}
	return time.Now().UTC()
}

// Run scrapes job.Account and always returns a valid result. The handle is
// released before Run returns, including on panic. A run that ends because
// ctx's deadline passed is a WorkerTimeout.
func (u *Unit) Run(ctx context.Context, job Job) (result *models.ScrapeResult) {
	ctx = reqctx.WithRun(ctx, job.Account, job.RunID)
	run := reqctx.FromContext(ctx)
	logger := reqctx.Logger(ctx, log.Logger)

	handle, err := u.Launcher.Launch(ctx, browser.LaunchOptions{Proxy: job.Proxy, Headless: u.Headless})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to start browser")
		return u.failure(ctx, run.ID, job.Account, engine.NewError(engine.KindInternal, "failed to start browser", err), nil)
	}
	if u.OnHandle != nil {
		u.OnHandle(handle)
	}
	defer func() {
		if err := handle.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to release browser")
		}
	}()

	page := handle.Page()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Scrape panicked")
			err := engine.NewError(engine.KindInternal, fmt.Sprintf("panic: %v", r), nil)
			result = u.failure(ctx, run.ID, job.Account, err, page)
		}
	}()

	nav := engine.NewNavigator(page, u.Sessions, u.Limiter, u.Navigation)
	nav.Observer = u.Observer

	logger.Info().Msg("Scrape started")
	profile, media, err := nav.Run(ctx, job.Account)
	if err != nil {
		logger.Error().Err(err).Str("state", string(nav.State())).Msg("Scrape failed")
		return u.failure(ctx, run.ID, job.Account, err, page)
	}

	logger.Info().Int("media", len(media)).Dur("took", time.Since(run.StartTime)).Msg("Scrape finished")
	return &models.ScrapeResult{
		Account:   job.Account,
		RunID:     run.ID,
		ScrapedAt: u.clock(),
		Profile:   profile,
		Media:     media,
	}
}

// failure builds the error envelope, capturing diagnostics from page when
// there is one.
func (u *Unit) failure(ctx context.Context, runID, account string, err error, page browser.Page) *models.ScrapeResult {
	kind := classify(ctx, err)
	result := models.NewFailure(account, runID, string(kind), engine.Message(err), u.clock())

	if page != nil && u.Capturer != nil {
		d, cerr := u.Capturer.Capture(ctx, page)
		if cerr != nil {
			logger := reqctx.Logger(ctx, log.Logger)
			logger.Warn().Err(cerr).Msg("Diagnostics unavailable")
		}
		result.Error.Diagnostics = d
	}
	return result
}

// classify attributes a failure to the budget when the run's own deadline
// has passed, whatever step noticed it.
func classify(ctx context.Context, err error) engine.Kind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return engine.KindWorkerTimeout
	}
	return engine.KindOf(err)
}

// Execute runs the unit under budget, persists the result to job.Output and
// returns it with the worker exit status.
func Execute(ctx context.Context, u *Unit, job Job, budget time.Duration) (*models.ScrapeResult, int) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	result := u.Run(ctx, job)
	if err := sink.Write(result, job.Output); err != nil {
		err = reqctx.Wrap(reqctx.WithRun(ctx, job.Account, job.RunID), err)
		log.Error().Err(err).Str("path", job.Output).Msg("Failed to persist result")
		return result, engine.ExitCode(engine.KindPersistenceFailure)
	}
	if result.Failed() {
		return result, engine.ExitCode(engine.Kind(result.Error.Kind))
	}
	return result, 0
}
