// Package agent assembles a quiz Driver and its collaborators from a Config.
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/quizagent/pkg/browser"
	"github.com/papercomputeco/quizagent/pkg/config"
	"github.com/papercomputeco/quizagent/pkg/llm/openai"
	"github.com/papercomputeco/quizagent/pkg/quiz"
	"github.com/papercomputeco/quizagent/pkg/reasoner"
	"github.com/papercomputeco/quizagent/pkg/sandbox"
	"github.com/papercomputeco/quizagent/pkg/submit"
	"github.com/papercomputeco/quizagent/pkg/transcript"
)

// Agent owns everything a run needs. It is safe for concurrent runs.
type Agent struct {
	driver   *quiz.Driver
	executor *sandbox.ProcessExecutor
	storer   transcript.Storer
	logger   *zap.Logger
}

// New builds an Agent from cfg.
func New(cfg *config.Config, logger *zap.Logger) (*Agent, error) {
	storer, err := NewStorer(cfg.Transcript)
	if err != nil {
		return nil, err
	}

	launcher, err := NewLauncher(cfg.Browser, logger)
	if err != nil {
		storer.Close()
		return nil, err
	}

	executor := NewExecutor(cfg.Sandbox, logger)

	model := openai.New(openai.Config{
		BaseURL:        cfg.Model.BaseURL,
		APIKey:         cfg.Model.APIKey,
		Model:          cfg.Model.Name,
		MaxRetries:     cfg.Model.MaxRetries,
		RequestTimeout: cfg.Model.RequestTimeout,
	}, logger)

	engine := reasoner.New(reasoner.Config{
		TurnBudget:  cfg.Agent.TurnBudget,
		TextLimit:   cfg.Agent.TextLimit,
		MarkupLimit: cfg.Agent.MarkupLimit,
	}, model, executor, transcript.NewRecorder(storer), logger)

	driver := quiz.NewDriver(quiz.Config{
		MaxIterations:       cfg.Quiz.MaxIterations,
		MaxIncorrectRetries: cfg.Quiz.MaxIncorrectRetries,
		RunTimeout:          cfg.Quiz.RunTimeout,
	}, launcher, engine, submit.NewClient(cfg.Quiz.SubmitTimeout, logger), logger)

	return &Agent{
		driver:   driver,
		executor: executor,
		storer:   storer,
		logger:   logger,
	}, nil
}

// NewExecutor builds the code executor.
func NewExecutor(cfg config.SandboxConfig, logger *zap.Logger) *sandbox.ProcessExecutor {
	return sandbox.NewProcessExecutor(sandbox.Config{
		Interpreter:    cfg.Interpreter,
		Extension:      cfg.SnippetExtension(),
		TempDir:        cfg.TempDir,
		Timeout:        cfg.Timeout,
		CPUSeconds:     cfg.CPUSeconds,
		MemoryMB:       cfg.MemoryMB,
		MaxOutputBytes: cfg.MaxOutputBytes,
		Env:            cfg.Env,
	}, logger)
}

// NewLauncher builds the page fetcher selected by cfg.Kind.
func NewLauncher(cfg config.BrowserConfig, logger *zap.Logger) (browser.Launcher, error) {
	switch cfg.Kind {
	case config.BrowserChrome:
		return browser.NewChromeLauncher(browser.ChromeConfig{
			Headless:    cfg.Headless,
			ExecPath:    cfg.ExecPath,
			PageTimeout: cfg.PageTimeout,
		}, logger), nil
	case config.BrowserHTTP:
		return browser.NewHTTPLauncher(cfg.PageTimeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser kind %q", cfg.Kind)
	}
}

// NewStorer opens the transcript store. An empty DBPath keeps it in memory,
// bounded by MemoryLimit.
func NewStorer(cfg config.TranscriptConfig) (transcript.Storer, error) {
	if cfg.DBPath == "" {
		return transcript.NewBoundedMemoryStorer(cfg.MemoryLimit), nil
	}
	storer, err := transcript.NewSQLiteStorer(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open transcript store: %w", err)
	}
	return storer, nil
}

// Run solves one chain.
func (a *Agent) Run(ctx context.Context, req quiz.RunRequest) *quiz.RunOutcome {
	return a.driver.Run(ctx, req)
}

// Storer returns the transcript store shared by every run.
func (a *Agent) Storer() transcript.Storer {
	return a.storer
}

// Executor returns the code executor.
func (a *Agent) Executor() *sandbox.ProcessExecutor {
	return a.executor
}

// Close releases the transcript store.
func (a *Agent) Close() error {
	if err := a.storer.Close(); err != nil {
		return fmt.Errorf("close transcript store: %w", err)
	}
	return nil
}
