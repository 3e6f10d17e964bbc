package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/21prnv/InfluenceIq/internal/browser"
	"github.com/21prnv/InfluenceIq/internal/engine"
	"github.com/21prnv/InfluenceIq/internal/sink"
	"github.com/21prnv/InfluenceIq/pkg/models"
)

// DefaultGrace is how long an expired unit may keep running to record its
// own timeout before its handle is torn down.
const DefaultGrace = 5 * time.Second

// InProcess runs the unit on a goroutine of the calling process. On budget
// expiry the unit gets Grace to wind down, then its browser is closed under
// it.
type InProcess struct {
	Unit  Unit
	Grace time.Duration
}

func (p *InProcess) Run(ctx context.Context, job Job, budget time.Duration) *models.ScrapeResult {
	grace := p.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}

	var (
		mu     sync.Mutex
		handle browser.Handle
	)
	unit := p.Unit
	unit.OnHandle = func(h browser.Handle) {
		mu.Lock()
		handle = h
		mu.Unlock()
	}

	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan *models.ScrapeResult, 1)
	go func() {
		done <- unit.Run(runCtx, job)
	}()

	var result *models.ScrapeResult
	select {
	case result = <-done:
	case <-runCtx.Done():
		timer := time.NewTimer(grace)
		select {
		case result = <-done:
			timer.Stop()
		case <-timer.C:
			log.Warn().Str("account", job.Account).Msg("Worker ignored its deadline, releasing browser")
			mu.Lock()
			h := handle
			mu.Unlock()
			if h != nil {
				_ = h.Close()
			}
			p.drain(done, grace, job)
			result = models.NewFailure(job.Account, job.RunID, string(engine.KindWorkerTimeout),
				fmt.Sprintf("worker exceeded its %s budget", budget), time.Now().UTC())
		}
	}

	if err := sink.Write(result, job.Output); err != nil {
		log.Error().Err(err).Str("path", job.Output).Msg("Failed to persist result")
		return models.NewFailure(job.Account, job.RunID, string(engine.KindPersistenceFailure), engine.Message(err), time.Now().UTC())
	}
	return result
}

// drain waits for a released unit to return. A unit still running after
// grace is abandoned.
func (p *InProcess) drain(done <-chan *models.ScrapeResult, grace time.Duration, job Job) {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		log.Error().Str("account", job.Account).Msg("Worker did not stop after its browser was released")
	}
}
