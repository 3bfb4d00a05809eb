package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"veriflow/internal/artifacts"
	"veriflow/internal/config"
	"veriflow/internal/logging"
	"veriflow/internal/notifications"
	"veriflow/internal/services"
	"veriflow/internal/session"
)

var (
	// ErrMissingArtifacts is returned when required captures are absent.
	ErrMissingArtifacts = errors.New("required artifacts missing")
	// ErrMissingToken is returned when no session token is set.
	ErrMissingToken = errors.New("session token missing")
)

const genericFailureMessage = "Verification submission failed. Please try again."

// FrameExtractor pulls the verification frame out of a recorded clip.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, clipPath string) ([]byte, error)
}

// Receipt is the confirmed outcome of a successful submission.
type Receipt struct {
	TrackingToken string
	Message       string
}

type backendResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

// Orchestrator drives submission to the remote verification service. Side
// effects are strictly ordered: artifacts and session state are cleared only
// after the backend confirms acceptance, so a failed submission can always be
// retried from the same persisted artifacts.
type Orchestrator struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *artifacts.Store
	tracker   *session.Tracker
	extractor FrameExtractor
	notifier  notifications.Service
	client    *http.Client
}

// NewOrchestrator builds an Orchestrator with the configured submit timeout.
func NewOrchestrator(
	cfg *config.Config,
	logger *slog.Logger,
	store *artifacts.Store,
	tracker *session.Tracker,
	extractor FrameExtractor,
	notifier notifications.Service,
) *Orchestrator {
	timeout := time.Duration(cfg.Verification.SubmitTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Orchestrator{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "submission"),
		store:     store,
		tracker:   tracker,
		extractor: extractor,
		notifier:  notifier,
		client:    &http.Client{Timeout: timeout},
	}
}

// Submit validates local state, uploads the captured artifacts, and on
// confirmed acceptance clears them and resets the session tracker. Failures
// leave everything in place for a retry.
func (o *Orchestrator) Submit(ctx context.Context) (*Receipt, error) {
	state := o.tracker.Snapshot()

	token := strings.TrimSpace(state.Token)
	if !validToken(token) {
		return nil, services.Wrap(services.ErrValidation, "submission", "validate", "session token is missing or malformed", ErrMissingToken)
	}

	endpoint := strings.TrimSpace(o.cfg.Verification.Endpoint)
	if endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, "submission", "validate", "verification endpoint is not configured", nil)
	}

	if !state.AgreedToTerms {
		return nil, services.Wrap(services.ErrValidation, "submission", "validate", "terms have not been accepted", nil)
	}

	docType, ok := session.ParseDocumentType(string(state.DocumentType))
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "submission", "validate", "document type is not set", nil)
	}

	country, err := session.NormalizeCountry(state.Country)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "submission", "validate", "invalid country", err)
	}

	if err := o.checkPresence(ctx, docType); err != nil {
		return nil, err
	}

	front, back, clip, err := o.loadArtifacts(ctx, docType)
	if err != nil {
		return nil, err
	}

	frame, err := o.extractVerificationFrame(ctx, clip)
	if err != nil {
		return nil, err
	}

	body, contentType, err := o.buildForm(front, back, frame, country, docType, token)
	if err != nil {
		return nil, err
	}

	response, err := o.post(ctx, endpoint, token, body, contentType)
	if err != nil {
		detail := services.Details(err)
		_ = o.notifier.NotifySubmissionFailed(ctx, detail.Message)
		return nil, err
	}

	if response.Error {
		message := strings.TrimSpace(response.Message)
		if message == "" {
			message = genericFailureMessage
		}
		o.logger.Warn("submission rejected",
			logging.String("message", message),
			logging.String(logging.FieldEventType, "submission_rejected"),
		)
		_ = o.notifier.NotifySubmissionFailed(ctx, message)
		return nil, services.Wrap(services.ErrTransient, "submission", "submit", message, nil)
	}

	// Acceptance confirmed; only now is local state safe to drop.
	if err := o.store.Clear(ctx); err != nil {
		return nil, services.Wrap(services.ErrTransient, "submission", "cleanup", "clear artifacts after acceptance", err)
	}
	if err := o.tracker.Reset(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "submission", "cleanup", "reset session after acceptance", err)
	}

	tracking := strings.TrimSpace(response.Token)
	o.logger.Info("submission accepted",
		logging.String("tracking_token", tracking),
		logging.String(logging.FieldEventType, "submission_accepted"),
	)
	_ = o.notifier.NotifySubmissionAccepted(ctx, tracking)

	return &Receipt{TrackingToken: tracking, Message: strings.TrimSpace(response.Message)}, nil
}

func (o *Orchestrator) checkPresence(ctx context.Context, docType session.DocumentType) error {
	presence, err := o.store.CheckPresence(ctx)
	if err != nil {
		return services.Wrap(services.ErrTransient, "submission", "validate", "check artifacts", err)
	}

	var missing []string
	if !presence.HasFront {
		missing = append(missing, string(artifacts.KeyFront))
	}
	if docType.BackRequired() && !presence.HasBack {
		missing = append(missing, string(artifacts.KeyBack))
	}
	if !presence.HasFaceClip {
		missing = append(missing, string(artifacts.KeyFaceClip))
	}
	if len(missing) > 0 {
		message := fmt.Sprintf("missing captures: %s", strings.Join(missing, ", "))
		return services.Wrap(services.ErrValidation, "submission", "validate", message, ErrMissingArtifacts)
	}
	return nil
}

func (o *Orchestrator) loadArtifacts(ctx context.Context, docType session.DocumentType) (front, back, clip *artifacts.Artifact, err error) {
	limit := o.cfg.Verification.MaxArtifactSizeBytes

	load := func(key artifacts.Key) (*artifacts.Artifact, error) {
		artifact, err := o.store.Get(ctx, key)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "submission", "load", fmt.Sprintf("load %s", key), err)
		}
		if artifact != nil && limit > 0 && artifact.Size > limit {
			message := fmt.Sprintf("%s exceeds the %d byte upload limit", key, limit)
			return nil, services.Wrap(services.ErrValidation, "submission", "load", message, nil)
		}
		return artifact, nil
	}

	if front, err = load(artifacts.KeyFront); err != nil {
		return nil, nil, nil, err
	}
	if back, err = load(artifacts.KeyBack); err != nil {
		return nil, nil, nil, err
	}
	if docType.BackRequired() && back == nil {
		return nil, nil, nil, services.Wrap(services.ErrValidation, "submission", "load", "document back disappeared before submit", ErrMissingArtifacts)
	}
	if clip, err = load(artifacts.KeyFaceClip); err != nil {
		return nil, nil, nil, err
	}
	return front, back, clip, nil
}

// extractVerificationFrame stages the stored clip on disk so the extractor
// can run ffmpeg against it.
func (o *Orchestrator) extractVerificationFrame(ctx context.Context, clip *artifacts.Artifact) ([]byte, error) {
	if err := os.MkdirAll(o.cfg.Paths.StagingDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "submission", "extract", "create staging directory", err)
	}

	ext := "webm"
	if strings.Contains(clip.ContentType, "mp4") {
		ext = "mp4"
	}
	clipPath := filepath.Join(o.cfg.Paths.StagingDir, "submit-clip."+ext)
	if err := os.WriteFile(clipPath, clip.Payload, 0o644); err != nil {
		return nil, services.Wrap(services.ErrTransient, "submission", "extract", "stage clip", err)
	}
	defer os.Remove(clipPath)

	frame, err := o.extractor.ExtractFrame(ctx, clipPath)
	if err != nil {
		return nil, err
	}
	return frame, nil
}

func (o *Orchestrator) buildForm(front, back *artifacts.Artifact, frame []byte, country string, docType session.DocumentType, token string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	addFile := func(field, filename, contentType string, payload []byte) error {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return err
		}
		_, err = part.Write(payload)
		return err
	}

	if err := addFile("front", "front.png", front.ContentType, front.Payload); err != nil {
		return nil, "", services.Wrap(services.ErrTransient, "submission", "form", "attach front", err)
	}
	if back != nil {
		if err := addFile("back", "back.png", back.ContentType, back.Payload); err != nil {
			return nil, "", services.Wrap(services.ErrTransient, "submission", "form", "attach back", err)
		}
	}
	if err := addFile("faceVideo", "faceVideo.png", "image/png", frame); err != nil {
		return nil, "", services.Wrap(services.ErrTransient, "submission", "form", "attach face frame", err)
	}

	fields := map[string]string{
		"country":      country,
		"documentType": string(docType),
		"terms":        "true",
		"token":        token,
	}
	for field, value := range fields {
		if err := writer.WriteField(field, value); err != nil {
			return nil, "", services.Wrap(services.ErrTransient, "submission", "form", "write field "+field, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", services.Wrap(services.ErrTransient, "submission", "form", "finalize form", err)
	}
	return body, writer.FormDataContentType(), nil
}

func (o *Orchestrator) post(ctx context.Context, endpoint, token string, body *bytes.Buffer, contentType string) (*backendResponse, error) {
	url := strings.TrimRight(endpoint, "/") + "/process/" + token
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "submission", "submit", "build request", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := o.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return nil, services.Wrap(services.ErrTimeout, "submission", "submit", "the verification service did not respond in time", err)
		}
		return nil, services.Wrap(services.ErrTransient, "submission", "submit", "reach verification service", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "submission", "submit", "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := backendMessage(raw)
		if message == "" {
			message = fmt.Sprintf("verification service returned status %d", resp.StatusCode)
		}
		return nil, services.Wrap(services.ErrTransient, "submission", "submit", message, nil)
	}

	var response backendResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, services.Wrap(services.ErrTransient, "submission", "submit", "decode response", err)
	}
	return &response, nil
}

func backendMessage(raw []byte) string {
	var response backendResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return ""
	}
	return strings.TrimSpace(response.Message)
}

func isClientTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// validToken accepts tokens safe to embed in a URL path segment.
func validToken(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}
