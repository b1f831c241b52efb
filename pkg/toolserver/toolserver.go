// Package toolserver exposes the code executor as an MCP tool.
package toolserver

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/quizagent/pkg/reasoner"
	"github.com/papercomputeco/quizagent/pkg/sandbox"
)

// RunInput is the argument of the run tool.
type RunInput struct {
	Code string `json:"code" jsonschema:"complete source code to execute"`
}

// RunOutput is the structured result of the run tool.
type RunOutput struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	TimedOut   bool   `json:"timed_out"`
	Truncated  bool   `json:"truncated"`
	DurationMS int64  `json:"duration_ms"`
}

// Server serves the executor over MCP.
type Server struct {
	server   *mcp.Server
	executor sandbox.Executor
	logger   *zap.Logger
}

// New creates a new Server exposing executor under the reasoning engine's tool name.
func New(executor sandbox.Executor, version string, logger *zap.Logger) *Server {
	s := &Server{
		server:   mcp.NewServer(&mcp.Implementation{Name: "quizagent", Version: version}, nil),
		executor: executor,
		logger:   logger,
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        reasoner.RunCodeTool,
		Description: reasoner.RunCodeSpec.Description,
	}, s.run)

	return s
}

// MCPServer returns the underlying server, for custom transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// Run serves over stdin and stdout until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio", zap.String("tool", reasoner.RunCodeTool))
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) run(ctx context.Context, _ *mcp.CallToolRequest, in RunInput) (*mcp.CallToolResult, RunOutput, error) {
	if strings.TrimSpace(in.Code) == "" {
		return errorResult("code must not be empty"), RunOutput{}, nil
	}

	outcome, err := s.executor.Execute(ctx, in.Code)
	if err != nil {
		var execErr *sandbox.ExecutionError
		if errors.As(err, &execErr) {
			s.logger.Warn("execution failed", zap.Error(err))
			return errorResult(execErr.Error()), RunOutput{}, nil
		}
		return nil, RunOutput{}, err
	}

	out := RunOutput{
		Stdout:     outcome.Stdout,
		Stderr:     outcome.Stderr,
		ExitCode:   outcome.ExitCode,
		TimedOut:   outcome.TimedOut,
		Truncated:  outcome.Truncated,
		DurationMS: outcome.Duration.Milliseconds(),
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: outcome.Combined()}},
		IsError: outcome.TimedOut,
	}, out, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}
