package solvecmder

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quizagent/cmd/quizagent/setup"
	"github.com/papercomputeco/quizagent/pkg/agent"
	"github.com/papercomputeco/quizagent/pkg/config"
	"github.com/papercomputeco/quizagent/pkg/quiz"
)

const solveLongDesc string = `Solve a quiz chain in the foreground and print a summary.

The secret defaults to QUIZAGENT_SECRET (or server.secret in the config).
The command exits non-zero unless the chain completes.

Examples:
  quizagent solve --email me@example.com https://quiz.example/start
  quizagent solve -c quizagent.toml --email me@example.com --report run.yaml https://quiz.example/start`

const solveShortDesc string = "Solve a quiz chain and print a summary"

// ErrNotCompleted is returned when the run ends with any cause but completed.
var ErrNotCompleted = errors.New("quiz chain not completed")

type solveCommander struct {
	flags  setup.Flags
	email  string
	secret string
	report string
}

func NewSolveCmd() *cobra.Command {
	cmder := &solveCommander{}

	cmd := &cobra.Command{
		Use:          "solve <url>",
		Short:        solveShortDesc,
		Long:         solveLongDesc,
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}

	cmder.flags.Register(cmd)
	cmd.Flags().StringVar(&cmder.email, "email", "", "Email sent with every submission")
	cmd.Flags().StringVar(&cmder.secret, "secret", "", "Secret sent with every submission")
	cmd.Flags().StringVar(&cmder.report, "report", "", "Write the full run outcome as YAML to this path")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func (c *solveCommander) run(ctx context.Context, cmd *cobra.Command, startURL string) error {
	cfg, logger, err := c.flags.Load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := agent.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("could not build agent: %w", err)
	}
	defer a.Close()

	outcome := a.Run(ctx, quiz.RunRequest{
		StartURL: startURL,
		Credentials: quiz.Credentials{
			Email:  c.email,
			Secret: c.submissionSecret(cfg),
		},
	})

	fmt.Fprintln(cmd.OutOrStdout(), RenderSummary(outcome))

	if c.report != "" {
		if err := WriteReport(c.report, outcome); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", c.report)
	}

	if !outcome.Cause.Succeeded() {
		return fmt.Errorf("%w: %s", ErrNotCompleted, outcome.Cause)
	}
	return nil
}

func (c *solveCommander) submissionSecret(cfg *config.Config) string {
	if c.secret != "" {
		return c.secret
	}
	return cfg.Server.Secret
}

// WriteReport writes outcome to path as YAML.
func WriteReport(path string, outcome *quiz.RunOutcome) error {
	data, err := MarshalReport(outcome)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("could not write report %s: %w", path, err)
	}
	return nil
}
