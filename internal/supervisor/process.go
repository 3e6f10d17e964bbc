package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/21prnv/InfluenceIq/internal/engine"
	"github.com/21prnv/InfluenceIq/internal/sink"
	"github.com/21prnv/InfluenceIq/pkg/models"
)

// DefaultKillDelay is how long a worker may outlive its budget before its
// process group is killed. The worker enforces the budget itself; the kill
// covers workers that are wedged.
const DefaultKillDelay = 10 * time.Second

// ProcessIsolation runs each job as `<Executable> <Args...> worker` in its
// own process group.
type ProcessIsolation struct {
	Executable string
	// Args precede the worker subcommand, e.g. --config.
	Args      []string
	Env       []string
	Stderr    io.Writer
	KillDelay time.Duration
}

// NewProcessIsolation re-executes the running binary.
func NewProcessIsolation(args ...string) (*ProcessIsolation, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	return &ProcessIsolation{
		Executable: exe,
		Args:       args,
		Stderr:     os.Stderr,
		KillDelay:  DefaultKillDelay,
	}, nil
}

// WorkerArgs is the command line of the worker for job.
func WorkerArgs(job Job, budget time.Duration) []string {
	args := []string{"worker", job.Account,
		"--output", job.Output,
		"--run-id", job.RunID,
		"--budget", budget.String(),
	}
	if job.Proxy != "" {
		args = append(args, "--proxy", job.Proxy)
	}
	return args
}

func (p *ProcessIsolation) Run(ctx context.Context, job Job, budget time.Duration) *models.ScrapeResult {
	killDelay := p.KillDelay
	if killDelay <= 0 {
		killDelay = DefaultKillDelay
	}
	ctx, cancel := context.WithTimeout(ctx, budget+killDelay)
	defer cancel()

	args := append(append([]string(nil), p.Args...), WorkerArgs(job, budget)...)
	cmd := exec.CommandContext(ctx, p.Executable, args...)
	cmd.Env = append(os.Environ(), p.Env...)
	cmd.Stderr = p.Stderr
	cmd.SysProcAttr = sysProcAttr()
	cmd.Cancel = func() error { return killGroup(cmd) }
	cmd.WaitDelay = killDelay

	logger := log.With().Str("account", job.Account).Str("run_id", job.RunID).Logger()

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logger.Error().Msg("Worker killed after exceeding its budget")
		return abandon(job, engine.KindWorkerTimeout, fmt.Sprintf("worker exceeded its %s budget and was killed", budget))
	}

	code := 0
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		code = exitErr.ExitCode()
	case err != nil:
		logger.Error().Err(err).Msg("Worker could not be started")
		return abandon(job, engine.KindInternal, fmt.Sprintf("worker could not be started: %v", err))
	}

	result, rerr := sink.Read(job.Output)
	if rerr == nil && result.RunID == job.RunID {
		logger.Debug().Int("exit_code", code).Msg("Worker result collected")
		return result
	}

	// No result from this run: a stale file from an earlier run does not count.
	kind := engine.KindFromExitCode(code)
	if kind == "" {
		kind = engine.KindInternal
	}
	logger.Error().Err(rerr).Int("exit_code", code).Msg("Worker exited without a result")
	return abandon(job, kind, fmt.Sprintf("worker exited with status %d without a result", code))
}
