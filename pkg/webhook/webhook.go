// Package webhook posts analysis reports to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ccollicutt/waitlens/pkg/analyzer"
	"github.com/ccollicutt/waitlens/pkg/config"
	"github.com/ccollicutt/waitlens/pkg/output"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// EventAnalysisCompleted is the event name carried by every payload.
const EventAnalysisCompleted = "analysis.completed"

const maxResponseBody = 1 << 20

// Payload is the JSON body posted to webhook endpoints. Metric series and
// reasons breakdowns stay out of it; receivers that want them read the report
// file instead.
type Payload struct {
	Event       string                    `json:"event"`
	RunID       string                    `json:"run_id"`
	Summary     output.Summary            `json:"summary"`
	Transitions []output.TransitionReport `json:"transitions"`
	Issues      []analyzer.Issue          `json:"issues"`
	Metadata    output.Metadata           `json:"metadata"`
}

// NewPayload builds the payload for report.
func NewPayload(report *output.Report) Payload {
	return Payload{
		Event:       EventAnalysisCompleted,
		RunID:       report.RunID,
		Summary:     report.Summary,
		Transitions: report.Transitions,
		Issues:      report.Issues,
		Metadata:    report.Metadata,
	}
}

// Client sends analysis reports to webhook endpoints.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
	retries    int
	backoff    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for delivery results.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetries retries 5xx responses and transport errors up to n more times,
// sleeping backoff, then twice that, between attempts.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		c.backoff = backoff
	}
}

// NewClient creates a new webhook client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendOptions configures a webhook request.
type SendOptions struct {
	URL     string
	Token   string        // Bearer token (optional)
	Timeout time.Duration // Per-attempt timeout (uses DefaultTimeout if zero)
}

// Response contains the result of a webhook request.
type Response struct {
	StatusCode int
	Body       string
	Attempts   int
	Duration   time.Duration
	Error      error

	permanent bool
}

// Success returns true if the webhook was sent successfully (2xx status).
func (r *Response) Success() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) retryable() bool {
	return !r.permanent && (r.StatusCode == 0 || r.StatusCode >= 500)
}

// Send posts the report payload to a webhook endpoint.
func (c *Client) Send(ctx context.Context, report *output.Report, opts SendOptions) *Response {
	start := time.Now()

	body, err := json.Marshal(NewPayload(report))
	if err != nil {
		return &Response{Error: fmt.Errorf("failed to marshal payload: %w", err), Duration: time.Since(start)}
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	var resp *Response
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		resp = c.post(ctx, body, opts.URL, opts.Token, timeout)
		resp.Attempts = attempt
		if resp.Success() || !resp.retryable() || attempt > c.retries {
			break
		}

		c.logger.Debug("retrying webhook",
			zap.String("url", opts.URL),
			zap.Int("attempt", attempt),
			zap.Error(resp.Error))

		select {
		case <-ctx.Done():
			resp.Error = ctx.Err()
			resp.Duration = time.Since(start)
			return resp
		case <-time.After(wait):
		}
		wait *= 2
	}

	resp.Duration = time.Since(start)
	return resp
}

func (c *Client) post(ctx context.Context, body []byte, url, token string, timeout time.Duration) *Response {
	resp := &Response{}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		resp.Error = fmt.Errorf("failed to create request: %w", err)
		resp.permanent = true
		return resp
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "waitlens-webhook")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		resp.Error = fmt.Errorf("request failed: %w", err)
		return resp
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		resp.Error = fmt.Errorf("failed to read response: %w", err)
		return resp
	}

	resp.StatusCode = httpResp.StatusCode
	resp.Body = string(respBody)
	if resp.StatusCode >= 400 {
		resp.Error = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return resp
}

// Result pairs a webhook with its delivery outcome.
type Result struct {
	Name     string
	Response *Response
}

// ShouldFire reports whether a webhook with trigger fires for a report.
// Unknown triggers behave like on_issues.
func ShouldFire(trigger config.WebhookTrigger, hasIssues bool) bool {
	switch trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	default:
		return hasIssues
	}
}

// Notify sends report to every webhook whose trigger fires, in order.
// Delivery failures are logged and returned, never raised.
func (c *Client) Notify(ctx context.Context, hooks []config.WebhookConfig, report *output.Report) []Result {
	var results []Result
	for _, wh := range hooks {
		if !ShouldFire(wh.Trigger, report.HasIssues()) {
			continue
		}

		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		resp := c.Send(ctx, report, SendOptions{URL: wh.URL, Token: wh.Token, Timeout: wh.Timeout})
		if resp.Success() {
			c.logger.Info("webhook sent",
				zap.String("webhook", name),
				zap.Int("status", resp.StatusCode),
				zap.Duration("duration", resp.Duration))
		} else {
			c.logger.Warn("webhook failed",
				zap.String("webhook", name),
				zap.Int("attempts", resp.Attempts),
				zap.Error(resp.Error))
		}
		results = append(results, Result{Name: name, Response: resp})
	}
	return results
}
