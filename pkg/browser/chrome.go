package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ChromeConfig configures the headless Chrome launcher.
type ChromeConfig struct {
	// Headless runs Chrome without a window.
	Headless bool

	// ExecPath overrides the Chrome binary. Empty searches the usual locations.
	ExecPath string

	// PageTimeout bounds each page load. Zero uses DefaultPageTimeout.
	PageTimeout time.Duration
}

// ChromeLauncher starts one headless Chrome instance per run.
type ChromeLauncher struct {
	config ChromeConfig
	logger *zap.Logger
}

// NewChromeLauncher creates a new ChromeLauncher.
func NewChromeLauncher(config ChromeConfig, logger *zap.Logger) *ChromeLauncher {
	if config.PageTimeout <= 0 {
		config.PageTimeout = DefaultPageTimeout
	}
	return &ChromeLauncher{config: config, logger: logger}
}

// Launch starts Chrome. The browser outlives ctx; it is released by Close.
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.config.Headless),
	)
	if l.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.config.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Running with no actions starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, err
	}

	l.logger.Debug("chrome started", zap.Bool("headless", l.config.Headless))

	return &chrome{
		ctx:           browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		pageTimeout:   l.config.PageTimeout,
		logger:        l.logger,
	}, nil
}

type chrome struct {
	mu            sync.Mutex
	closed        bool
	ctx           context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	pageTimeout   time.Duration
	logger        *zap.Logger
}

// Fetch opens url in a new tab of the shared browser, waits for the body to be
// ready and extracts the outer HTML and the body's innerText.
func (c *chrome) Fetch(ctx context.Context, url string) (*Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, &FetchError{URL: url, Err: ErrClosed}
	}

	tabCtx, cancelTab := chromedp.NewContext(c.ctx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, c.pageTimeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	start := time.Now()
	page := &Page{URL: url}
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &page.Markup, chromedp.ByQuery),
		chromedp.Evaluate(`document.body.innerText`, &page.Text),
	)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	c.logger.Debug("page rendered",
		zap.String("url", url),
		zap.Int("markup_bytes", len(page.Markup)),
		zap.Int("text_bytes", len(page.Text)),
		zap.Duration("duration", time.Since(start)),
	)

	return page, nil
}

// Close shuts Chrome down. It is safe to call more than once.
func (c *chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	err := chromedp.Cancel(c.ctx)
	c.cancelBrowser()
	c.cancelAlloc()
	return err
}
