// Package submit posts quiz answers and decodes the evaluator's verdict.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds one submission POST.
const DefaultTimeout = 30 * time.Second

// maxResponseBytes caps how much of a verdict body is read.
const maxResponseBytes = 1 << 20

// ErrMalformedVerdict is returned when a 2xx response body is not a verdict object.
var ErrMalformedVerdict = errors.New("malformed verdict")

// Payload is the JSON body of a submission.
type Payload struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	URL    string `json:"url"`
	Answer any    `json:"answer"`
}

// Verdict is the evaluator's response to a submission.
type Verdict struct {
	Correct bool `json:"correct"`

	// URL of the next question, when there is one.
	URL string `json:"url,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// StatusError reports a non-2xx submission response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("submission returned %d: %s", e.StatusCode, e.Body)
}

// Client posts answers to submission endpoints.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Client. A zero timeout uses DefaultTimeout.
func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Submit posts payload to submissionURL and decodes the verdict.
func (c *Client) Submit(ctx context.Context, submissionURL string, payload Payload) (*Verdict, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, submissionURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("submitting answer",
		zap.String("submission_url", submissionURL),
		zap.String("url", payload.URL),
		zap.Any("answer", payload.Answer),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("submission response",
		zap.Int("status", resp.StatusCode),
		zap.String("body", truncate(string(respBody), 500)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 500)}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(respBody, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	if _, ok := fields["correct"]; !ok {
		return nil, fmt.Errorf(`%w: missing "correct"`, ErrMalformedVerdict)
	}

	var verdict Verdict
	if err := json.Unmarshal(respBody, &verdict); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	return &verdict, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
