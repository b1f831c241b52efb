package pushcmder

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/quizagent/pkg/quiz"
	"github.com/papercomputeco/quizagent/pkg/transcript"
	"github.com/papercomputeco/quizagent/server"
)

type idleRunner struct{}

func (idleRunner) Run(context.Context, quiz.RunRequest) *quiz.RunOutcome {
	return &quiz.RunOutcome{Cause: quiz.CauseCompleted}
}

var _ = Describe("Push Command", func() {
	var (
		ctx       context.Context
		localPath string
	)

	BeforeEach(func() {
		ctx = context.Background()
		localPath = filepath.Join(GinkgoT().TempDir(), "local.db")
	})

	makeNode := func(role, text string, parent *transcript.Node) *transcript.Node {
		parentHash := ""
		if parent != nil {
			parentHash = parent.Hash
		}
		return transcript.NewNode(transcript.Bucket{Type: "turn", Role: role, Content: text}, parentHash)
	}

	seed := func(nodes ...*transcript.Node) {
		local, err := transcript.NewSQLiteStorer(localPath)
		Expect(err).NotTo(HaveOccurred())
		defer local.Close()
		for _, n := range nodes {
			_, err := local.Put(ctx, n)
			Expect(err).NotTo(HaveOccurred())
		}
	}

	startServer := func(secret string) (string, *transcript.MemoryStorer) {
		storer := transcript.NewMemoryStorer()
		srv := server.New(server.Config{Secret: secret}, idleRunner{}, storer, zap.NewNop())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())

		go func() {
			_ = srv.RunWithListener(listener)
		}()
		DeferCleanup(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})

		return "http://" + listener.Addr().String(), storer
	}

	push := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := NewPushCmd()
		cmd.SetArgs(append([]string{"--db", localPath}, args...))
		cmd.SetOut(&out)
		cmd.SetErr(&bytes.Buffer{})
		err := cmd.ExecuteContext(ctx)
		return out.String(), err
	}

	It("pushes local turns to a remote server", func() {
		nodeA := makeNode("user", "hello from push test", nil)
		seed(nodeA, makeNode("assistant", "hi back from push test", nodeA))

		addr, storer := startServer("")
		out, err := push(addr)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Pushed 2 new turns"))

		nodes, err := storer.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(nodes).To(HaveLen(2))
	})

	It("deduplicates on double push", func() {
		seed(makeNode("user", "dedup push test", nil))

		addr, storer := startServer("")
		_, err := push(addr)
		Expect(err).NotTo(HaveOccurred())
		out, err := push("--batch-size", "1", addr)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("(1 already existed, 0 errors)"))

		nodes, err := storer.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(nodes).To(HaveLen(1))
	})

	It("sends the secret as a bearer token", func() {
		seed(makeNode("user", "guarded", nil))
		addr, storer := startServer("s3cret")

		out, err := push(addr)
		Expect(err).To(MatchError(ContainSubstring("403")))
		Expect(out).NotTo(ContainSubstring("Usage:"))

		_, err = push("--secret", "s3cret", addr)
		Expect(err).NotTo(HaveOccurred())
		Expect(storer.List(ctx)).To(HaveLen(1))
	})

	It("does nothing for an empty database", func() {
		seed()
		out, err := push("http://127.0.0.1:1")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("No local turns"))
	})

	It("splits turns into bounded batches", func() {
		nodes := make([]*transcript.Node, 5)
		for i := range nodes {
			nodes[i] = makeNode("user", string(rune('a'+i)), nil)
		}

		var starts, sizes []int
		for start, batch := range batches(nodes, 2) {
			starts = append(starts, start)
			sizes = append(sizes, len(batch))
		}
		Expect(starts).To(Equal([]int{0, 2, 4}))
		Expect(sizes).To(Equal([]int{2, 2, 1}))
	})
})
