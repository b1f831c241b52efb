package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// maxPageBytes caps how much of a response body is read.
const maxPageBytes = 10 << 20

// HTTPLauncher fetches pages with a plain HTTP client and extracts text from
// the served markup. Scripts are not executed, so it only suits pages whose
// question is present in the initial HTML.
type HTTPLauncher struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewHTTPLauncher creates a new HTTPLauncher.
func NewHTTPLauncher(timeout time.Duration, logger *zap.Logger) *HTTPLauncher {
	if timeout <= 0 {
		timeout = DefaultPageTimeout
	}
	return &HTTPLauncher{timeout: timeout, logger: logger}
}

// Launch returns a browser backed by its own HTTP client.
func (l *HTTPLauncher) Launch(context.Context) (Browser, error) {
	return &staticBrowser{
		client: &http.Client{Timeout: l.timeout},
		logger: l.logger,
	}, nil
}

type staticBrowser struct {
	client *http.Client
	logger *zap.Logger
	closed bool
}

func (b *staticBrowser) Fetch(ctx context.Context, url string) (*Page, error) {
	if b.closed {
		return nil, &FetchError{URL: url, Err: ErrClosed}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("server returned %d", resp.StatusCode)}
	}

	markup := string(body)
	text, err := ExtractText(markup)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	b.logger.Debug("page fetched",
		zap.String("url", url),
		zap.Int("markup_bytes", len(markup)),
		zap.Int("text_bytes", len(text)),
	)

	return &Page{URL: url, Markup: markup, Text: text}, nil
}

func (b *staticBrowser) Close() error {
	b.closed = true
	b.client.CloseIdleConnections()
	return nil
}

// ExtractText returns the visible text of the document body, one line per
// block of text, skipping scripts and styles.
func ExtractText(markup string) (string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	root := findElement(doc, "body")
	if root == nil {
		root = doc
	}

	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template", "head":
				return
			}
		case html.TextNode:
			if line := strings.Join(strings.Fields(n.Data), " "); line != "" {
				lines = append(lines, line)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	return strings.Join(lines, "\n"), nil
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, tag); found != nil {
			return found
		}
	}
	return nil
}
