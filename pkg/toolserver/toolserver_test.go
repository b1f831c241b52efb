package toolserver_test

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/quizagent/pkg/sandbox"
	"github.com/papercomputeco/quizagent/pkg/toolserver"
)

var _ = Describe("Server", func() {
	var (
		config  sandbox.Config
		session *mcp.ClientSession
		ctx     context.Context
	)

	BeforeEach(func() {
		config = sandbox.Config{Interpreter: "/bin/sh", Extension: ".sh", Timeout: 2 * time.Second}
	})

	connect := func() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		DeferCleanup(cancel)

		server := toolserver.New(sandbox.NewProcessExecutor(config, zap.NewNop()), "test", zap.NewNop())
		clientTransport, serverTransport := mcp.NewInMemoryTransports()

		serverSession, err := server.MCPServer().Connect(ctx, serverTransport, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(serverSession.Close)

		client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
		session, err = client.Connect(ctx, clientTransport, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(session.Close)
	}

	call := func(code string) *mcp.CallToolResult {
		result, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      "run_python",
			Arguments: map[string]any{"code": code},
		})
		Expect(err).NotTo(HaveOccurred())
		return result
	}

	text := func(result *mcp.CallToolResult) string {
		Expect(result.Content).To(HaveLen(1))
		content, ok := result.Content[0].(*mcp.TextContent)
		Expect(ok).To(BeTrue())
		return content.Text
	}

	It("lists the run tool with a code parameter", func() {
		connect()

		tools, err := session.ListTools(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(tools.Tools).To(HaveLen(1))
		Expect(tools.Tools[0].Name).To(Equal("run_python"))
		Expect(tools.Tools[0].Description).NotTo(BeEmpty())
	})

	It("runs code and returns combined output", func() {
		connect()

		result := call("echo 42; echo oops >&2")
		Expect(result.IsError).To(BeFalse())
		Expect(text(result)).To(Equal("42\n" + sandbox.StderrMarker + "oops\n"))
		Expect(result.StructuredContent).To(HaveKeyWithValue("stdout", "42\n"))
	})

	It("flags timed out runs as errors", func() {
		config.Timeout = 200 * time.Millisecond
		connect()

		result := call("sleep 5")
		Expect(result.IsError).To(BeTrue())
		Expect(result.StructuredContent).To(HaveKeyWithValue("timed_out", true))
	})

	It("rejects empty code", func() {
		connect()

		result := call("  ")
		Expect(result.IsError).To(BeTrue())
		Expect(text(result)).To(ContainSubstring("empty"))
	})

	It("reports launch failures as tool errors", func() {
		config.Interpreter = "/nonexistent/interpreter"
		connect()

		result := call("echo hi")
		Expect(result.IsError).To(BeTrue())
		Expect(text(result)).To(ContainSubstring("execution failed"))
	})
})
