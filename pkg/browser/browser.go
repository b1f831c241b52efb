// Package browser loads quiz pages and extracts their markup and visible text.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultPageTimeout bounds a single page load.
const DefaultPageTimeout = 60 * time.Second

// ErrClosed is returned by Fetch after the browser was closed.
var ErrClosed = errors.New("browser closed")

// Page is the rendered content of one URL.
type Page struct {
	URL    string
	Markup string
	Text   string
}

// Fetcher loads a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// Browser is a navigation context owned by one quiz run. It must not be used
// by two sessions at once and must be closed when the run ends.
type Browser interface {
	Fetcher
	Close() error
}

// Launcher starts a Browser.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// FetchError wraps a page load failure with the URL that failed.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
