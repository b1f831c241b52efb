package execcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quizagent/cmd/quizagent/setup"
	"github.com/papercomputeco/quizagent/pkg/agent"
)

const execLongDesc string = `Run a snippet through the sandboxed code executor.

The snippet is read from the given file, or from stdin when the file is
"-" or omitted. Output is printed exactly as the reasoning engine sees it:
stdout, then stderr under an "Error:" marker.

Examples:
  quizagent exec script.py
  echo 'print(6*7)' | quizagent exec`

const execShortDesc string = "Run code in the sandbox"

// ErrTimedOut is returned when the snippet hits the executor timeout.
var ErrTimedOut = errors.New("execution timed out")

type execCommander struct {
	flags setup.Flags
}

func NewExecCmd() *cobra.Command {
	cmder := &execCommander{}

	cmd := &cobra.Command{
		Use:          "exec [file]",
		Short:        execShortDesc,
		Long:         execLongDesc,
		SilenceUsage: true,
		Args:         cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := "-"
			if len(args) == 1 {
				source = args[0]
			}
			return cmder.run(cmd.Context(), cmd, source)
		},
	}

	cmder.flags.Register(cmd)

	return cmd
}

func (c *execCommander) run(ctx context.Context, cmd *cobra.Command, source string) error {
	cfg, logger, err := c.flags.Load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	code, err := readSource(cmd.InOrStdin(), source)
	if err != nil {
		return err
	}

	executor := agent.NewExecutor(cfg.Sandbox, logger)
	outcome, err := executor.Execute(ctx, code)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), outcome.Combined())

	if outcome.TimedOut {
		return fmt.Errorf("%w after %s", ErrTimedOut, executor.Timeout())
	}
	if outcome.ExitCode != 0 {
		return fmt.Errorf("snippet exited with status %d", outcome.ExitCode)
	}
	return nil
}

func readSource(stdin io.Reader, source string) (string, error) {
	var (
		data []byte
		err  error
	)
	if source == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return "", fmt.Errorf("could not read snippet: %w", err)
	}
	return string(data), nil
}
