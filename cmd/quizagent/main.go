package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	execcmder "github.com/papercomputeco/quizagent/cmd/quizagent/exec"
	mcpcmder "github.com/papercomputeco/quizagent/cmd/quizagent/mcp"
	mergecmder "github.com/papercomputeco/quizagent/cmd/quizagent/merge"
	pushcmder "github.com/papercomputeco/quizagent/cmd/quizagent/push"
	servecmder "github.com/papercomputeco/quizagent/cmd/quizagent/serve"
	solvecmder "github.com/papercomputeco/quizagent/cmd/quizagent/solve"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const rootLongDesc string = `quizagent solves chains of web quiz pages.

Each page is rendered, handed to a model that may run Python in a
sandbox, and the answer is submitted. A correct answer that names a
next URL advances the chain until the quiz completes.`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "quizagent",
		Short:         "Autonomous quiz-solving agent",
		Long:          rootLongDesc,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(
		servecmder.NewServeCmd(version),
		solvecmder.NewSolveCmd(),
		execcmder.NewExecCmd(),
		mcpcmder.NewMCPCmd(version),
		pushcmder.NewPushCmd(),
		mergecmder.NewMergeCmd(),
	)

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
