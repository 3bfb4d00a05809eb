package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"veriflow/internal/config"
	"veriflow/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifySubmissionAccepted(context.Background(), "token123"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "document captured",
			notify: func(svc notifications.Service) error {
				return svc.NotifyDocumentCaptured(context.Background(), "front")
			},
			expectTitle:   "Veriflow - Document Captured",
			expectMessage: "Captured document front",
			expectTags:    "veriflow,capture,document",
		},
		{
			name: "face clip recorded",
			notify: func(svc notifications.Service) error {
				return svc.NotifyFaceClipRecorded(context.Background(), 2048)
			},
			expectTitle:   "Veriflow - Face Clip Recorded",
			expectMessage: "Recorded face clip (2048 bytes)",
			expectTags:    "veriflow,capture,face",
		},
		{
			name: "submission accepted",
			notify: func(svc notifications.Service) error {
				return svc.NotifySubmissionAccepted(context.Background(), "abc123")
			},
			expectTitle:    "Veriflow - Submitted",
			expectMessage:  "Verification submitted\nTracking token: abc123",
			expectTags:     "veriflow,submission,accepted",
			expectPriority: "high",
		},
		{
			name: "submission failed",
			notify: func(svc notifications.Service) error {
				return svc.NotifySubmissionFailed(context.Background(), "backend rejected the request")
			},
			expectTitle:    "Veriflow - Submission Failed",
			expectMessage:  "Submission failed: backend rejected the request",
			expectTags:     "veriflow,submission,failed",
			expectPriority: "high",
		},
		{
			name: "error",
			notify: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("device unplugged"), "camera /dev/video0")
			},
			expectTitle:    "Veriflow - Error",
			expectMessage:  "Error with camera /dev/video0: device unplugged",
			expectTags:     "veriflow,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			cfg.Notifications.Capture = true
			cfg.Notifications.Submission = true
			cfg.Notifications.Errors = true

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceRespectsCategoryToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled category: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Capture = false
	cfg.Notifications.Submission = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	if err := svc.NotifyDocumentCaptured(context.Background(), "front"); err != nil {
		t.Fatalf("disabled capture notification errored: %v", err)
	}
	if err := svc.NotifySubmissionAccepted(context.Background(), "token"); err != nil {
		t.Fatalf("disabled submission notification errored: %v", err)
	}
	if err := svc.NotifyError(context.Background(), errors.New("boom"), ""); err != nil {
		t.Fatalf("disabled error notification errored: %v", err)
	}
}
