package servecmder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/quizagent/cmd/quizagent/setup"
	"github.com/papercomputeco/quizagent/pkg/agent"
	"github.com/papercomputeco/quizagent/pkg/config"
	"github.com/papercomputeco/quizagent/pkg/toolserver"
	"github.com/papercomputeco/quizagent/server"
)

const serveLongDesc string = `Run the quiz agent HTTP server.

POST /run with {"email", "secret", "url"} starts solving the quiz chain
at url in the background. Poll GET /runs/<run_id> for the outcome.

With server.mcp = true the code executor is also served as an MCP tool
at /mcp, authenticated with "Authorization: Bearer <server.secret>".

When --config is given the file is watched and a changed server.secret
takes effect without a restart.

Examples:
  quizagent serve
  quizagent serve --config quizagent.toml --listen :9000`

const serveShortDesc string = "Run the quiz agent HTTP server"

// shutdownTimeout bounds how long in-flight runs get to report on exit.
const shutdownTimeout = 15 * time.Second

type serveCommander struct {
	flags   setup.Flags
	listen  string
	version string
}

func NewServeCmd(version string) *cobra.Command {
	cmder := &serveCommander{version: version}

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        serveShortDesc,
		Long:         serveLongDesc,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmder.flags.Register(cmd)
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (overrides server.listen)")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg, logger, err := c.flags.Load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if c.listen != "" {
		cfg.Server.Listen = c.listen
	}

	a, err := agent.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("could not build agent: %w", err)
	}
	defer a.Close()

	srv := server.New(server.Config{
		ListenAddr: cfg.Server.Listen,
		Secret:     cfg.Server.Secret,
	}, a, a.Storer(), logger)
	if cfg.Server.MCP {
		srv.MountMCP(toolserver.New(a.Executor(), c.version, logger).MCPServer())
	}

	if c.flags.ConfigPath != "" {
		watcher, err := config.NewWatcher(c.flags.ConfigPath, cfg, func(next *config.Config) {
			srv.SetSecret(next.Server.Secret)
		}, logger)
		if err != nil {
			return fmt.Errorf("could not watch config: %w", err)
		}
		defer watcher.Close()

		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Warn("config watcher stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
