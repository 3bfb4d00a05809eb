package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"veriflow/internal/config"
)

const userAgent = "Veriflow-Go/0.1.0"

// Service defines the notification surface exposed to capture components.
type Service interface {
	NotifyDocumentCaptured(ctx context.Context, side string) error
	NotifyFaceClipRecorded(ctx context.Context, size int64) error
	NotifySubmissionAccepted(ctx context.Context, trackingToken string) error
	NotifySubmissionFailed(ctx context.Context, reason string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint:   topic,
		client:     client,
		capture:    cfg.Notifications.Capture,
		submission: cfg.Notifications.Submission,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	capture    bool
	submission bool
	errors     bool
}

func (n *ntfyService) NotifyDocumentCaptured(ctx context.Context, side string) error {
	if !n.capture {
		return nil
	}
	side = strings.TrimSpace(side)
	if side == "" {
		side = "document"
	}
	data := payload{
		title:   "Veriflow - Document Captured",
		message: fmt.Sprintf("Captured document %s", side),
		tags:    []string{"veriflow", "capture", "document"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyFaceClipRecorded(ctx context.Context, size int64) error {
	if !n.capture {
		return nil
	}
	data := payload{
		title:   "Veriflow - Face Clip Recorded",
		message: fmt.Sprintf("Recorded face clip (%d bytes)", size),
		tags:    []string{"veriflow", "capture", "face"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySubmissionAccepted(ctx context.Context, trackingToken string) error {
	if !n.submission {
		return nil
	}
	trackingToken = strings.TrimSpace(trackingToken)
	message := "Verification submitted"
	if trackingToken != "" {
		message = fmt.Sprintf("Verification submitted\nTracking token: %s", trackingToken)
	}
	data := payload{
		title:    "Veriflow - Submitted",
		message:  message,
		tags:     []string{"veriflow", "submission", "accepted"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySubmissionFailed(ctx context.Context, reason string) error {
	if !n.submission {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Veriflow - Submission Failed",
		message:  fmt.Sprintf("Submission failed: %s", reason),
		tags:     []string{"veriflow", "submission", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Veriflow - Error",
		message:  builder.String(),
		tags:     []string{"veriflow", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Veriflow - Test",
		message:  "Notification system test",
		tags:     []string{"veriflow", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyDocumentCaptured(context.Context, string) error      { return nil }
func (noopService) NotifyFaceClipRecorded(context.Context, int64) error       { return nil }
func (noopService) NotifySubmissionAccepted(context.Context, string) error    { return nil }
func (noopService) NotifySubmissionFailed(context.Context, string) error      { return nil }
func (noopService) NotifyError(context.Context, error, string) error          { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
