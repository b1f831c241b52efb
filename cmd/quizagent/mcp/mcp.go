package mcpcmder

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quizagent/cmd/quizagent/setup"
	"github.com/papercomputeco/quizagent/pkg/agent"
	"github.com/papercomputeco/quizagent/pkg/toolserver"
)

const mcpLongDesc string = `Serve the sandboxed code executor as an MCP tool over stdio.

The tool is named run_python and takes a single "code" argument, the same
capability the reasoning engine offers the model. Logs go to stderr.

Examples:
  quizagent mcp
  quizagent mcp --config quizagent.toml`

const mcpShortDesc string = "Serve the code executor over MCP stdio"

type mcpCommander struct {
	flags   setup.Flags
	version string
}

func NewMCPCmd(version string) *cobra.Command {
	cmder := &mcpCommander{version: version}

	cmd := &cobra.Command{
		Use:          "mcp",
		Short:        mcpShortDesc,
		Long:         mcpLongDesc,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmder.flags.Register(cmd)

	return cmd
}

func (c *mcpCommander) run(ctx context.Context) error {
	cfg, logger, err := c.flags.Load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	executor := agent.NewExecutor(cfg.Sandbox, logger)
	return toolserver.New(executor, c.version, logger).Run(ctx)
}
