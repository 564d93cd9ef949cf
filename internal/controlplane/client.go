package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"wavelift/internal/config"
	"wavelift/internal/logging"
	"wavelift/internal/retry"
	"wavelift/internal/services"
)

const (
	batchPath  = "/get-video-list"
	notifyPath = "/notify-completion"
	statusOK   = "success"
	maxBody    = 32 << 20
)

// Batch is one unit of work handed out by the control plane.
type Batch struct {
	ListID  string
	Status  string
	Records []json.RawMessage
}

// Empty reports whether the batch carries no records.
func (b Batch) Empty() bool { return len(b.Records) == 0 }

// Client talks to the work-source control plane.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	policy    retry.Policy
	logger    *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient injects a custom HTTP client (primarily for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetryPolicy overrides the retry policy derived from config.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// New builds a client from config.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Client {
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &Client{
		baseURL:   strings.TrimRight(cfg.ControlPlane.BaseURL, "/"),
		userAgent: cfg.ControlPlane.UserAgent,
		http:      &http.Client{Timeout: timeout},
		policy: retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay(),
		},
		logger: logging.NewComponentLogger(logger, "controlplane"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type batchResponse struct {
	Status    string            `json:"status"`
	VideoList []json.RawMessage `json:"video_list"`
	ListID    json.RawMessage   `json:"list_id"`
}

// FetchBatch retrieves the next batch. A non-success status or an empty list
// is returned as an empty Batch without error. A non-success response also
// drops its list id so no completion report is sent for it. Transport failures are retried
// per policy; the last error is returned once attempts are exhausted.
func (c *Client) FetchBatch(ctx context.Context) (Batch, error) {
	policy := c.withRetryLog(ctx, "batch fetch attempt failed", "batch_fetch_retry")
	return retry.Do(ctx, policy, func(ctx context.Context) (Batch, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+batchPath, nil)
		if err != nil {
			return Batch{}, services.Wrap(services.ErrConfiguration, "fetch", "build request", "", err)
		}
		req.Header.Set("Accept", "application/json")

		body, err := c.do(req)
		if err != nil {
			return Batch{}, err
		}
		var resp batchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return Batch{}, services.Wrap(services.ErrTransient, "fetch", "decode batch", "invalid JSON", err)
		}
		batch := Batch{Status: strings.TrimSpace(resp.Status)}
		if !strings.EqualFold(batch.Status, statusOK) {
			c.logger.Warn("control plane reported no work",
				logging.String("status", batch.Status),
				logging.String("list_id", decodeListID(resp.ListID)),
				logging.String(logging.FieldEventType, "batch_no_work"),
			)
			return batch, nil
		}
		batch.ListID = decodeListID(resp.ListID)
		batch.Records = resp.VideoList
		return batch, nil
	})
}

// Notify posts the completion payload. The same bytes are sent on every attempt.
func (c *Client) Notify(ctx context.Context, payload []byte) error {
	policy := c.withRetryLog(ctx, "completion notify attempt failed", "notify_retry")
	return retry.Run(ctx, policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+notifyPath, bytes.NewReader(payload))
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "notify", "build request", "", err)
		}
		req.Header.Set("Content-Type", "application/json")
		_, err = c.do(req)
		return err
	})
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	stage := "fetch"
	if req.Method == http.MethodPost {
		stage = "notify"
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr == context.Canceled {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrTransient, stage, req.Method+" "+req.URL.Path, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stage, "read body", "", err)
	}
	if resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, services.Wrap(classifyStatus(resp.StatusCode), stage, req.Method+" "+req.URL.Path,
			fmt.Sprintf("control plane returned %d: %s", resp.StatusCode, snippet), nil)
	}
	return body, nil
}

func (c *Client) withRetryLog(ctx context.Context, msg, event string) retry.Policy {
	policy := c.policy
	logger := logging.WithContext(ctx, c.logger)
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logging.WarnWithContext(logger, msg, event,
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api.base_url and control plane health"),
			logging.String(logging.FieldImpact, "request will be retried"),
		)
	}
	return policy
}

// classifyStatus treats server-side and throttling responses as transient and
// the remaining client errors as configuration problems.
func classifyStatus(code int) error {
	switch {
	case code >= 500, code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return services.ErrTransient
	case code >= 400:
		return services.ErrConfiguration
	default:
		return services.ErrTransient
	}
}

func decodeListID(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(trimmed)
}
