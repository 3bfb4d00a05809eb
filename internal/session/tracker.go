package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"veriflow/internal/config"
)

// DocumentType enumerates the identity documents the flow accepts.
type DocumentType string

const (
	DocumentPassport DocumentType = "passport"
	DocumentDriver   DocumentType = "driver"
	DocumentID       DocumentType = "id"
)

// ParseDocumentType converts a string into a known DocumentType.
func ParseDocumentType(value string) (DocumentType, bool) {
	normalized := DocumentType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case DocumentPassport, DocumentDriver, DocumentID:
		return normalized, true
	}
	return "", false
}

// BackRequired reports whether the document type has a back side to capture.
// Passports are single-sided.
func (d DocumentType) BackRequired() bool {
	return d == DocumentDriver || d == DocumentID
}

// State is the progress record for one verification attempt. It gates which
// capture stage runs next and carries the metadata submitted alongside the
// artifacts.
type State struct {
	AttemptID           string       `json:"attemptId"`
	Token               string       `json:"token"`
	AgreedToTerms       bool         `json:"agreedToTerms"`
	AgreedToCamera      bool         `json:"agreedToCamera"`
	Country             string       `json:"country"`
	DocumentType        DocumentType `json:"documentType"`
	UploadDocumentFront bool         `json:"uploadDocumentFront"`
	UploadDocumentBack  bool         `json:"uploadDocumentBack"`
	FaceVerification    bool         `json:"faceVerification"`
}

// NormalizeCountry validates a country code and returns its canonical
// ISO 3166-1 alpha-2 form.
func NormalizeCountry(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", errors.New("country code is empty")
	}
	region, err := language.ParseRegion(trimmed)
	if err != nil {
		return "", fmt.Errorf("country code %q is not a valid region: %w", trimmed, err)
	}
	return region.String(), nil
}

// Tracker persists the progress record as JSON in the data directory. It is
// the session-scoped counterpart to the durable artifact store and is cleared
// independently on successful submission or explicit cancellation.
type Tracker struct {
	path string

	mu    sync.Mutex
	state State
}

// Open loads the tracker state from the data dir, starting fresh when no
// state file exists yet.
func Open(cfg *config.Config) (*Tracker, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	tracker := &Tracker{path: filepath.Join(cfg.Paths.DataDir, "session.json")}

	data, err := os.ReadFile(tracker.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tracker, nil
		}
		return nil, fmt.Errorf("read session state: %w", err)
	}
	if err := json.Unmarshal(data, &tracker.state); err != nil {
		return nil, fmt.Errorf("parse session state: %w", err)
	}
	return tracker, nil
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Update applies fn to the state and persists the result.
func (t *Tracker) Update(fn func(*State)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.state)
	return t.persistLocked()
}

// Reset clears the state and removes the persisted file.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{}
	if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session state: %w", err)
	}
	return nil
}

func (t *Tracker) persistLocked() error {
	data, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("replace session state: %w", err)
	}
	return nil
}
