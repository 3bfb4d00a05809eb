package testsupport

import (
	"context"
	"testing"

	"veriflow/internal/artifacts"
	"veriflow/internal/config"
	"veriflow/internal/session"
)

// MustOpenStore opens an artifacts.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *artifacts.Store {
	t.Helper()

	store, err := artifacts.Open(cfg)
	if err != nil {
		t.Fatalf("artifacts.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenTracker opens a session.Tracker for tests.
func MustOpenTracker(t testing.TB, cfg *config.Config) *session.Tracker {
	t.Helper()

	tracker, err := session.Open(cfg)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	return tracker
}

// SeedArtifacts stores the provided payloads under their keys.
func SeedArtifacts(t testing.TB, store *artifacts.Store, payloads map[artifacts.Key][]byte) {
	t.Helper()

	for key, payload := range payloads {
		contentType := "image/png"
		if key == artifacts.KeyFaceClip {
			contentType = "video/webm"
		}
		if err := store.Put(context.Background(), key, contentType, payload); err != nil {
			t.Fatalf("seed artifact %s: %v", key, err)
		}
	}
}
