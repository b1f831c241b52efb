package pushcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quizagent/cmd/quizagent/setup"
	"github.com/papercomputeco/quizagent/pkg/config"
	"github.com/papercomputeco/quizagent/pkg/transcript"
	"github.com/papercomputeco/quizagent/server"
)

const pushLongDesc string = `Push local transcript turns to a remote quizagent server.

Reads every turn from the local transcript database and POSTs them
to the remote server's /transcripts/nodes endpoint. Content-addressing
ensures duplicates are automatically skipped on the server side.

The secret defaults to QUIZAGENT_SECRET (or server.secret in the config).

Examples:
  quizagent push http://192.168.1.42:8080
  quizagent push --db ~/.quizagent/transcripts.db http://localhost:8080`

const pushShortDesc string = "Push transcripts to a remote quizagent server"

type pushCommander struct {
	configPath string
	dbPath     string
	secret     string
	batchSize  int
	timeout    time.Duration
}

func NewPushCmd() *cobra.Command {
	cmder := &pushCommander{}

	cmd := &cobra.Command{
		Use:          "push <server-url>",
		Short:        pushShortDesc,
		Long:         pushLongDesc,
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to a TOML config file")
	cmd.Flags().StringVar(&cmder.dbPath, "db", "", "Path to the local transcript database (default: transcript.db_path)")
	cmd.Flags().StringVar(&cmder.secret, "secret", "", "Secret expected by the remote server")
	cmd.Flags().IntVar(&cmder.batchSize, "batch-size", 500, "Turns per HTTP request")
	cmd.Flags().DurationVar(&cmder.timeout, "timeout", time.Minute, "Timeout for each HTTP request")

	return cmd
}

func (c *pushCommander) run(ctx context.Context, cmd *cobra.Command, serverURL string) error {
	if c.batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.batchSize)
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	if c.secret == "" {
		c.secret = cfg.Server.Secret
	}

	dbPath, err := setup.ResolveDBPath(c.dbPath, cfg)
	if err != nil {
		return fmt.Errorf("could not resolve local database: %w", err)
	}

	local, err := transcript.NewSQLiteStorer(dbPath)
	if err != nil {
		return fmt.Errorf("could not open local database %s: %w", dbPath, err)
	}
	defer local.Close()

	nodes, err := local.List(ctx)
	if err != nil {
		return fmt.Errorf("could not list local turns: %w", err)
	}
	if len(nodes) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No local turns to push.")
		return nil
	}

	endpoint := strings.TrimRight(serverURL, "/") + "/transcripts/nodes"
	fmt.Fprintf(cmd.OutOrStdout(), "Pushing %d turns from %s to %s\n", len(nodes), dbPath, endpoint)

	client := &http.Client{Timeout: c.timeout}
	var total server.PutNodesResponse
	for start, batch := range batches(nodes, c.batchSize) {
		got, err := c.post(ctx, client, endpoint, batch)
		if err != nil {
			return fmt.Errorf("push failed on turns %d-%d: %w", start, start+len(batch)-1, err)
		}
		total.New += got.New
		total.Duplicate += got.Duplicate
		total.Errors += got.Errors
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d new turns (%d already existed, %d errors)\n",
		total.New, total.Duplicate, total.Errors)
	return nil
}

// batches yields consecutive slices of at most size nodes, keyed by the
// index of their first node.
func batches(nodes []*transcript.Node, size int) iter.Seq2[int, []*transcript.Node] {
	return func(yield func(int, []*transcript.Node) bool) {
		for start := 0; start < len(nodes); start += size {
			if !yield(start, nodes[start:min(start+size, len(nodes))]) {
				return
			}
		}
	}
}

func (c *pushCommander) post(ctx context.Context, client *http.Client, endpoint string, batch []*transcript.Node) (*server.PutNodesResponse, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("could not marshal turns: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result server.PutNodesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("could not decode response: %w", err)
	}
	return &result, nil
}
