package submission

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"veriflow/internal/services"
)

// Status is the backend's view of a submitted verification attempt.
type Status struct {
	VerificationState string `json:"verification_state"`
	MinutesElapsed    int    `json:"minutes_elapsed"`
}

// Status fetches the current verification state for a tracking token.
func (o *Orchestrator) Status(ctx context.Context, token string) (*Status, error) {
	token = strings.TrimSpace(token)
	if !validToken(token) {
		return nil, services.Wrap(services.ErrValidation, "submission", "status", "tracking token is missing or malformed", ErrMissingToken)
	}

	endpoint := strings.TrimSpace(o.cfg.Verification.Endpoint)
	if endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, "submission", "status", "verification endpoint is not configured", nil)
	}

	url := strings.TrimRight(endpoint, "/") + "/status/" + token
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "submission", "status", "build request", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "submission", "status", "reach verification service", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "submission", "status", "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrTransient, "submission", "status", "verification service returned status "+resp.Status, nil)
	}

	var status Status
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, services.Wrap(services.ErrTransient, "submission", "status", "decode response", err)
	}
	return &status, nil
}

// Watch polls the status endpoint on the configured interval until the
// callback returns false or the context ends. Poll errors are passed to the
// callback as a nil status so transient outages do not stop the watch.
func (o *Orchestrator) Watch(ctx context.Context, token string, observe func(status *Status, err error) bool) error {
	interval := time.Duration(o.cfg.Verification.StatusPollSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := o.Status(ctx, token)
		if !observe(status, err) {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
