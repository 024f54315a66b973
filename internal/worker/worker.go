// Package worker drives the ingestion pipeline's poll loop: run one
// job at a time, sleep when the queue is empty, stop on cancellation.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	platformworker "github.com/lueurxax/telegram-digest-bot/internal/platform/worker"
)

// Runner is the single-job unit the loop drives; pipeline.Pipeline
// satisfies this.
type Runner interface {
	RunOnce(ctx context.Context) (bool, error)
}

// Config controls the loop's polling behavior.
type Config struct {
	SleepInterval time.Duration
	Logger        *zerolog.Logger
}

// Run drives the pipeline until ctx is canceled. Each iteration claims
// and processes at most one job; when the queue is empty it sleeps for
// SleepInterval (minimum one second) before polling again.
func Run(ctx context.Context, runner Runner, cfg Config) error {
	sleep := cfg.SleepInterval
	if sleep < time.Second {
		sleep = time.Second
	}

	return platformworker.Loop(ctx, platformworker.Config{
		Name:         "intel-pipeline",
		PollInterval: 0,
		Logger:       cfg.Logger,
		Process: func(ctx context.Context) error {
			ok, err := runner.RunOnce(ctx)
			if err != nil {
				return err
			}

			if !ok {
				return platformworker.Wait(ctx, sleep)
			}

			return nil
		},
	})
}

// RunOnce processes exactly one job and returns, for --once CLI mode.
func RunOnce(ctx context.Context, runner Runner) (bool, error) {
	return runner.RunOnce(ctx)
}
