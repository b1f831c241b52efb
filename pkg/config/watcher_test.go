package config_test

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/quizagent/pkg/config"
)

// replaceFile swaps the file in one rename so the watcher never sees a
// truncated file.
func replaceFile(path, body string) {
	tmp := path + ".tmp"
	Expect(os.WriteFile(tmp, []byte(body), 0o600)).To(Succeed())
	Expect(os.Rename(tmp, path)).To(Succeed())
}

var _ = Describe("Watcher", func() {
	var (
		path    string
		watcher *config.Watcher
		secrets atomic.Value
		cancel  context.CancelFunc
	)

	BeforeEach(func() {
		path = writeFile(GinkgoT().TempDir(), "[server]\nsecret = \"one\"\n")
		initial, err := config.LoadWithEnv(path, env(nil))
		Expect(err).NotTo(HaveOccurred())

		secrets = atomic.Value{}
		watcher, err = config.NewWatcher(path, initial, func(cfg *config.Config) {
			secrets.Store(cfg.Server.Secret)
		}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		watcher.SetLookup(env(nil))

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = watcher.Run(ctx)
		}()

		DeferCleanup(func() {
			cancel()
			Eventually(done).Should(BeClosed())
			Expect(watcher.Close()).To(Succeed())
		})
	})

	It("serves the initial config", func() {
		Expect(watcher.Current().Server.Secret).To(Equal("one"))
	})

	It("reloads when the file is replaced and notifies", func() {
		replaceFile(path, "[server]\nsecret = \"two\"\n")

		Eventually(func() string { return watcher.Current().Server.Secret }, 2*time.Second).Should(Equal("two"))
		Eventually(secrets.Load, 2*time.Second).Should(Equal("two"))
	})

	It("keeps the previous config when the new one is invalid", func() {
		replaceFile(path, "[agent]\nturn_budget = 0\n")

		Consistently(func() string { return watcher.Current().Server.Secret }, 300*time.Millisecond).Should(Equal("one"))
		Expect(secrets.Load()).To(BeNil())
	})
})
