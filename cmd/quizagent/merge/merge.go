package mergecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quizagent/cmd/quizagent/setup"
	"github.com/papercomputeco/quizagent/pkg/config"
	"github.com/papercomputeco/quizagent/pkg/transcript"
)

const mergeLongDesc string = `Merge one or more transcript databases into a target.

Content-addressing makes this a simple union: turns that already
exist in the target are skipped (deduped by hash).

Examples:
  quizagent merge source1.db source2.db
  quizagent merge --db /tmp/merged.db ~/alice/transcripts.db ~/bob/transcripts.db`

const mergeShortDesc string = "Merge transcript databases"

type mergeCommander struct {
	configPath string
	dbPath     string
}

func NewMergeCmd() *cobra.Command {
	cmder := &mergeCommander{}

	cmd := &cobra.Command{
		Use:          "merge [sources...]",
		Short:        mergeShortDesc,
		Long:         mergeLongDesc,
		SilenceUsage: true,
		Args:         cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to a TOML config file")
	cmd.Flags().StringVar(&cmder.dbPath, "db", "", "Path to the target transcript database (default: transcript.db_path)")

	return cmd
}

func (c *mergeCommander) run(ctx context.Context, cmd *cobra.Command, sources []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	targetPath, err := setup.ResolveDBPath(c.dbPath, cfg)
	if err != nil {
		return fmt.Errorf("could not resolve target database: %w", err)
	}

	target, err := transcript.NewSQLiteStorer(targetPath)
	if err != nil {
		return fmt.Errorf("could not open target database %s: %w", targetPath, err)
	}
	defer target.Close()

	var totalNew, totalDuped int

	for _, srcPath := range sources {
		srcNew, srcDuped, err := mergeFrom(ctx, target, srcPath)
		if err != nil {
			return err
		}

		totalNew += srcNew
		totalDuped += srcDuped

		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d new, %d already existed\n", srcPath, srcNew, srcDuped)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Merged %d new turns from %d sources (%d already existed) into %s\n",
		totalNew, len(sources), totalDuped, targetPath)

	return nil
}

func mergeFrom(ctx context.Context, target transcript.Storer, srcPath string) (int, int, error) {
	source, err := transcript.NewSQLiteStorer(srcPath)
	if err != nil {
		return 0, 0, fmt.Errorf("could not open source database %s: %w", srcPath, err)
	}
	defer source.Close()

	nodes, err := source.List(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("could not list turns from %s: %w", srcPath, err)
	}

	var srcNew, srcDuped int
	for _, n := range nodes {
		isNew, err := target.Put(ctx, n)
		if err != nil {
			return 0, 0, fmt.Errorf("could not put turn %s: %w", n.Hash, err)
		}
		if isNew {
			srcNew++
		} else {
			srcDuped++
		}
	}
	return srcNew, srcDuped, nil
}
