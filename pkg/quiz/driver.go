package quiz

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/quizagent/pkg/browser"
)

// Driver runs question sessions along a chain until it terminates or the
// iteration ceiling is reached.
type Driver struct {
	launcher  browser.Launcher
	solver    Solver
	submitter Submitter
	config    Config
	logger    *zap.Logger
}

// NewDriver creates a new Driver.
func NewDriver(config Config, launcher browser.Launcher, solver Solver, submitter Submitter, logger *zap.Logger) *Driver {
	config.applyDefaults()
	return &Driver{
		launcher:  launcher,
		solver:    solver,
		submitter: submitter,
		config:    config,
		logger:    logger,
	}
}

// Run solves the chain starting at req.StartURL. It launches one browser for
// the whole run and closes it on every exit path.
func (d *Driver) Run(ctx context.Context, req RunRequest) *RunOutcome {
	if d.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.RunTimeout)
		defer cancel()
	}

	logger := d.logger.With(zap.String("start_url", req.StartURL))
	out := &RunOutcome{
		StartURL:  req.StartURL,
		LastURL:   req.StartURL,
		Questions: []QuestionOutcome{},
		StartedAt: time.Now(),
	}
	defer func() {
		out.FinishedAt = time.Now()
		logger.Info("run finished",
			zap.String("cause", string(out.Cause)),
			zap.String("last_url", out.LastURL),
			zap.Int("iterations", out.Iterations),
			zap.Duration("duration", out.Duration()),
		)
	}()

	b, err := d.launcher.Launch(ctx)
	if err != nil {
		logger.Error("failed to launch browser", zap.Error(err))
		out.Cause = CauseFetchError
		out.Error = fmt.Sprintf("launch browser: %v", err)
		return out
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("failed to close browser", zap.Error(err))
		}
	}()

	state := SessionState{
		CurrentURL:    req.StartURL,
		MaxIterations: d.config.MaxIterations,
	}
	visited := map[string]struct{}{}
	session := NewSession(b, d.solver, d.submitter, req.Credentials, d.config.MaxIncorrectRetries, d.logger)

	for state.IterationCount < state.MaxIterations {
		out.LastURL = state.CurrentURL
		if err := ctx.Err(); err != nil {
			logger.Warn("run canceled", zap.Error(err))
			out.Cause = CauseCanceled
			out.Error = err.Error()
			return out
		}

		state.IterationCount++
		out.Iterations = state.IterationCount
		visited[state.CurrentURL] = struct{}{}
		logger.Info("starting question",
			zap.Int("iteration", state.IterationCount),
			zap.String("url", state.CurrentURL),
		)

		q := session.Run(ctx, state.CurrentURL)
		out.Questions = append(out.Questions, *q)

		if q.State == StateTerminated {
			out.Cause = q.Cause
			out.Reason = q.Reason
			out.Error = q.Error
			return out
		}

		if _, seen := visited[q.NextURL]; seen {
			logger.Warn("next url already visited", zap.String("next_url", q.NextURL))
			out.Cause = CauseURLRevisited
			out.Error = fmt.Sprintf("next url %s was already visited", q.NextURL)
			return out
		}
		state.CurrentURL = q.NextURL
	}

	out.LastURL = state.CurrentURL
	out.Cause = CauseMaxIterationsExceeded
	return out
}
