// Package server provides the HTTP dispatch API that starts quiz runs and
// exposes their outcomes and transcripts.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/quizagent/pkg/llm"
	"github.com/papercomputeco/quizagent/pkg/quiz"
	"github.com/papercomputeco/quizagent/pkg/transcript"
)

// Runner solves one quiz chain.
type Runner interface {
	Run(ctx context.Context, req quiz.RunRequest) *quiz.RunOutcome
}

// RunRequest is the body of POST /run. Unknown fields are ignored.
type RunRequest struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// RunAccepted is the acknowledgement of POST /run.
type RunAccepted struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	RunID   string `json:"run_id"`
}

// Server accepts run requests and dispatches each to its own goroutine.
// Runs outlive their request; Shutdown cancels them.
type Server struct {
	config   Config
	runner   Runner
	storer   transcript.Storer
	registry *registry
	logger   *zap.Logger
	server   *fiber.App

	secretMu sync.RWMutex
	secret   string

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new Server.
func New(config Config, runner Runner, storer transcript.Storer, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:   config,
		runner:   runner,
		storer:   storer,
		registry: newRegistry(config.MaxRetainedRuns),
		logger:   logger,
		server:   app,
		secret:   config.Secret,
		baseCtx:  baseCtx,
		cancel:   cancel,
	}

	app.Use(fiberrecover.New())
	app.Use(cors.New())
	s.routes(app)

	return s
}

func (s *Server) routes(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"message": "Quiz agent is running"})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	app.Post("/run", s.handleRun)
	app.Get("/runs", s.handleListRuns)
	app.Get("/runs/:id", s.handleGetRun)

	// Transcript inspection endpoints
	app.Get("/transcripts/stats", s.handleTranscriptStats)
	app.Post("/transcripts/nodes", s.handlePutNodes)
	app.Get("/transcripts/:hash", s.handleGetTranscript)
}

// Run starts the server on the configured listening address.
func (s *Server) Run() error {
	s.logger.Info("starting quiz agent server",
		zap.String("listen", s.config.ListenAddr),
		zap.Bool("secret_required", s.expectedSecret() != ""),
	)

	return s.server.Listen(s.config.ListenAddr)
}

// RunWithListener serves on an existing listener.
func (s *Server) RunWithListener(ln net.Listener) error {
	s.logger.Info("starting quiz agent server", zap.String("listen", ln.Addr().String()))
	return s.server.Listener(ln)
}

// MountMCP serves mcpServer over streamable HTTP at /mcp. The tools run
// code on this host, so every request must carry the secret as a bearer token
// and the endpoint refuses all requests while no secret is set.
func (s *Server) MountMCP(mcpServer *mcp.Server) {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return mcpServer
	}, &mcp.StreamableHTTPOptions{
		Stateless:    true,
		JSONResponse: true,
	})

	s.server.All("/mcp", s.requireBearer, adaptor.HTTPHandler(handler))
	s.logger.Info("serving MCP over HTTP", zap.String("path", "/mcp"))
}

// requireBearer rejects requests without the expected bearer secret, and all
// requests when no secret is set.
func (s *Server) requireBearer(c *fiber.Ctx) error {
	if s.expectedSecret() == "" || !s.secretMatches(bearerToken(c)) {
		return c.Status(fiber.StatusForbidden).JSON(llm.ErrorResponse{Error: "Invalid secret"})
	}
	return c.Next()
}

func bearerToken(c *fiber.Ctx) string {
	return strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
}

// SetSecret replaces the expected request secret.
func (s *Server) SetSecret(secret string) {
	s.secretMu.Lock()
	defer s.secretMu.Unlock()
	if s.secret != secret {
		s.logger.Info("request secret updated", zap.Bool("secret_required", secret != ""))
	}
	s.secret = secret
}

func (s *Server) expectedSecret() string {
	s.secretMu.RLock()
	defer s.secretMu.RUnlock()
	return s.secret
}

// secretMatches fails closed: it accepts anything only when no secret is set.
func (s *Server) secretMatches(secret string) bool {
	expected := s.expectedSecret()
	if expected == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(expected)) == 1
}

// Shutdown stops accepting requests, cancels in-flight runs and waits for
// them to report until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.ShutdownWithContext(ctx)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return errors.Join(err, fmt.Errorf("waiting for runs: %w", ctx.Err()))
	}
}

// handleRun validates a run request and starts the run in the background.
func (s *Server) handleRun(c *fiber.Ctx) error {
	var req RunRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		s.logger.Warn("failed to parse run request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	var missing []string
	if strings.TrimSpace(req.Email) == "" {
		missing = append(missing, "email")
	}
	if req.Secret == "" {
		missing = append(missing, "secret")
	}
	if strings.TrimSpace(req.URL) == "" {
		missing = append(missing, "url")
	}
	if len(missing) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "missing fields: " + strings.Join(missing, ", "),
		})
	}

	if !s.secretMatches(req.Secret) {
		s.logger.Warn("rejected run request with invalid secret", zap.String("email", req.Email))
		return c.Status(fiber.StatusForbidden).JSON(llm.ErrorResponse{Error: "Invalid secret"})
	}

	run := &Run{
		ID:        uuid.NewString(),
		Email:     req.Email,
		URL:       req.URL,
		StartedAt: time.Now(),
	}
	s.registry.start(run)

	s.logger.Info("received quiz request",
		zap.String("run_id", run.ID),
		zap.String("email", req.Email),
		zap.String("url", req.URL),
	)

	s.dispatch(run.ID, quiz.RunRequest{
		StartURL:    req.URL,
		Credentials: quiz.Credentials{Email: req.Email, Secret: req.Secret},
	})

	return c.JSON(RunAccepted{
		Message: "Quiz processing started",
		Status:  StatusProcessing,
		RunID:   run.ID,
	})
}

// dispatch runs req on its own goroutine. A panicking run is recorded as
// canceled rather than taking the server down.
func (s *Server) dispatch(id string, req quiz.RunRequest) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		outcome := &quiz.RunOutcome{StartURL: req.StartURL, LastURL: req.StartURL, StartedAt: time.Now()}
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("run panicked", zap.String("run_id", id), zap.Any("panic", r))
				outcome.Cause = quiz.CauseCanceled
				outcome.Error = fmt.Sprintf("panic: %v", r)
				outcome.FinishedAt = time.Now()
			}
			s.registry.finish(id, outcome)
		}()

		outcome = s.runner.Run(s.baseCtx, req)
		s.logger.Info("run completed",
			zap.String("run_id", id),
			zap.String("cause", string(outcome.Cause)),
			zap.Int("iterations", outcome.Iterations),
		)
	}()
}

func (s *Server) handleListRuns(c *fiber.Ctx) error {
	runs := s.registry.list()
	return c.JSON(map[string]any{
		"count": len(runs),
		"runs":  runs,
	})
}

func (s *Server) handleGetRun(c *fiber.Ctx) error {
	run, ok := s.registry.get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "run not found"})
	}
	return c.JSON(run)
}

// handleTranscriptStats returns statistics about the transcript DAG.
func (s *Server) handleTranscriptStats(c *fiber.Ctx) error {
	ctx := c.Context()

	nodes, err := s.storer.List(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list nodes"})
	}

	roots, err := s.storer.Roots(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get roots"})
	}

	leaves, err := s.storer.Leaves(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get leaves"})
	}

	return c.JSON(map[string]any{
		"total_nodes": len(nodes),
		"root_count":  len(roots),
		"leaf_count":  len(leaves),
	})
}

// PutNodesResponse reports the outcome of a node upload.
type PutNodesResponse struct {
	New       int `json:"new"`
	Duplicate int `json:"duplicate"`
	Errors    int `json:"errors"`
}

// handlePutNodes stores uploaded transcript nodes. Nodes whose hash does not
// match their content are counted as errors and skipped. When a secret is
// configured it must be sent as a bearer token.
func (s *Server) handlePutNodes(c *fiber.Ctx) error {
	if !s.secretMatches(bearerToken(c)) {
		return c.Status(fiber.StatusForbidden).JSON(llm.ErrorResponse{Error: "Invalid secret"})
	}

	var nodes []*transcript.Node
	if err := json.Unmarshal(c.Body(), &nodes); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	var resp PutNodesResponse
	for _, node := range nodes {
		if node == nil || !node.Verify() {
			resp.Errors++
			continue
		}
		isNew, err := s.storer.Put(c.Context(), node)
		if err != nil {
			s.logger.Error("failed to store node", zap.String("hash", node.Hash), zap.Error(err))
			resp.Errors++
			continue
		}
		if isNew {
			resp.New++
		} else {
			resp.Duplicate++
		}
	}

	s.logger.Info("stored uploaded nodes",
		zap.Int("new", resp.New),
		zap.Int("duplicate", resp.Duplicate),
		zap.Int("errors", resp.Errors),
	)
	return c.JSON(resp)
}

// TranscriptResponse is the conversation leading up to a transcript node.
type TranscriptResponse struct {
	// Page is the quiz URL the conversation was about
	Page string `json:"page"`

	// Turns in chronological order (oldest first, up to and including the requested node)
	Turns []TranscriptTurn `json:"turns"`

	HeadHash string `json:"head_hash"`
	Depth    int    `json:"depth"`

	// MissingParent is set when the chain stops at a turn whose parent is not
	// stored, e.g. one pushed without its history. Turns is then partial.
	MissingParent string `json:"missing_parent,omitempty"`
}

// TranscriptTurn is one recorded turn.
type TranscriptTurn struct {
	Hash       string                `json:"hash"`
	ParentHash *string               `json:"parent_hash,omitempty"`
	Role       string                `json:"role"`
	Content    string                `json:"content"`
	ToolCalls  []transcript.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string                `json:"tool_call_id,omitempty"`
}

// handleGetTranscript returns the conversation leading up to a node.
func (s *Server) handleGetTranscript(c *fiber.Ctx) error {
	hash := c.Params("hash")
	if hash == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "hash parameter required"})
	}

	ancestry, missing, err := s.ancestry(c.Context(), hash)
	if err != nil {
		var notFound transcript.ErrNotFound
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "node not found"})
		}
		s.logger.Error("failed to load transcript", zap.String("hash", hash), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to load transcript"})
	}

	// Ancestry is newest first.
	resp := TranscriptResponse{
		Turns:         make([]TranscriptTurn, len(ancestry)),
		HeadHash:      hash,
		Depth:         len(ancestry),
		MissingParent: missing,
	}
	for i, node := range ancestry {
		resp.Turns[len(ancestry)-1-i] = TranscriptTurn{
			Hash:       node.Hash,
			ParentHash: node.ParentHash,
			Role:       node.Bucket.Role,
			Content:    node.Bucket.Content,
			ToolCalls:  node.Bucket.ToolCalls,
			ToolCallID: node.Bucket.ToolCallID,
		}
		if node.ParentHash == nil {
			resp.Page = node.Bucket.Page
		}
	}

	return c.JSON(resp)
}

// ancestry walks from hash towards the root, newest first. A parent that is
// not stored ends the walk and is returned as missing; only a missing head is
// an error.
func (s *Server) ancestry(ctx context.Context, hash string) ([]*transcript.Node, string, error) {
	head, err := s.storer.Get(ctx, hash)
	if err != nil {
		return nil, "", err
	}

	path := []*transcript.Node{head}
	for node := head; node.ParentHash != nil; {
		parent, err := s.storer.Get(ctx, *node.ParentHash)
		var notFound transcript.ErrNotFound
		if errors.As(err, &notFound) {
			return path, *node.ParentHash, nil
		}
		if err != nil {
			return nil, "", err
		}
		path = append(path, parent)
		node = parent
	}
	return path, "", nil
}
