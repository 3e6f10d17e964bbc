package supervisor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/21prnv/InfluenceIq/internal/engine"
	"github.com/21prnv/InfluenceIq/internal/proxy"
	"github.com/21prnv/InfluenceIq/internal/sink"
	"github.com/21prnv/InfluenceIq/pkg/models"
)

// Isolation runs a job somewhere the supervisor can abandon it. Run must
// return within budget plus a bounded grace period, and must leave a result
// at job.Output.
type Isolation interface {
	Run(ctx context.Context, job Job, budget time.Duration) *models.ScrapeResult
}

// Supervisor assigns run ids and proxies, delegates to an Isolation and
// reports completions.
type Supervisor struct {
	Isolation Isolation
	OutputDir string
	Budget    time.Duration
	Proxies   *proxy.Pool
	Notifier  *sink.Notifier
}

// Run scrapes one account. It never fails: every outcome is a result.
func (s *Supervisor) Run(ctx context.Context, account string) *models.ScrapeResult {
	job := Job{
		Account: account,
		RunID:   uuid.NewString(),
		Output:  sink.Path(s.OutputDir, account),
	}
	if s.Proxies != nil {
		job.Proxy = s.Proxies.Next()
	}

	logger := log.With().Str("account", account).Str("run_id", job.RunID).Logger()
	logger.Info().Dur("budget", s.Budget).Msg("Dispatching worker")

	start := time.Now()
	result := s.Isolation.Run(ctx, job, s.Budget)

	if s.Proxies != nil && job.Proxy != "" {
		if result.Failed() && blamesProxy(engine.Kind(result.Error.Kind)) {
			s.Proxies.MarkFailed(job.Proxy)
		} else if !result.Failed() {
			s.Proxies.MarkHealthy(job.Proxy)
		}
	}

	ev := logger.Info()
	if result.Failed() {
		ev = logger.Warn().Str("kind", result.Error.Kind)
	}
	ev.Dur("took", time.Since(start)).Str("path", job.Output).Msg("Worker finished")

	if err := s.Notifier.Notify(ctx, sink.NewCompletion(result, job.Output)); err != nil {
		logger.Debug().Err(err).Msg("Completion not delivered")
	}
	return result
}

// RunAll scrapes accounts with at most concurrency workers alive at once.
// Results are in the order of accounts.
func (s *Supervisor) RunAll(ctx context.Context, accounts []string, concurrency int) []*models.ScrapeResult {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]*models.ScrapeResult, len(accounts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, account := range accounts {
		g.Go(func() error {
			results[i] = s.Run(ctx, account)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// blamesProxy reports whether a failure kind suggests the exit address is
// burned rather than the account or session.
func blamesProxy(kind engine.Kind) bool {
	switch kind {
	case engine.KindPlatformBlocked, engine.KindLoginWallDetected,
		engine.KindNavigationTimeout, engine.KindWorkerTimeout:
		return true
	}
	return false
}

// abandon writes the envelope for a run the supervisor gave up on.
func abandon(job Job, kind engine.Kind, message string) *models.ScrapeResult {
	result := models.NewFailure(job.Account, job.RunID, string(kind), message, time.Now().UTC())
	if err := sink.Write(result, job.Output); err != nil {
		log.Error().Err(err).Str("path", job.Output).Msg("Failed to persist result")
	}
	return result
}
