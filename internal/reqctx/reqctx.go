// Package reqctx carries per-run identity through a context.
package reqctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type key int

const runKey key = 0

// Run identifies one scrape run of one account.
type Run struct {
	ID        string
	Account   string
	StartTime time.Time
}

// WithRun attaches a new Run for account to ctx. An empty id generates one.
func WithRun(ctx context.Context, account, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, runKey, &Run{
		ID:        id,
		Account:   account,
		StartTime: time.Now(),
	})
}

// FromContext returns the Run stored in ctx, or a placeholder.
func FromContext(ctx context.Context) *Run {
	if r, ok := ctx.Value(runKey).(*Run); ok {
		return r
	}
	return &Run{ID: "unknown", StartTime: time.Now()}
}

// Logger returns l with the run's fields attached.
func Logger(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	r := FromContext(ctx)
	return l.With().Str("run_id", r.ID).Str("account", r.Account).Logger()
}

// RunError wraps an error with the run it happened in
type RunError struct {
	RunID string
	Err   error
}

// Error implements the error interface
func (e *RunError) Error() string {
	return fmt.Sprintf("[%s] %v", e.RunID, e.Err)
}

// Unwrap returns the underlying error
func (e *RunError) Unwrap() error {
	return e.Err
}

// Wrap tags err with the run id from ctx.
func Wrap(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	return &RunError{RunID: FromContext(ctx).ID, Err: err}
}
