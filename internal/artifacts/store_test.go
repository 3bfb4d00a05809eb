package artifacts_test

import (
	"bytes"
	"context"
	"testing"

	"veriflow/internal/artifacts"
	"veriflow/internal/testsupport"
)

func TestPutGetRoundTrip(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	payload := []byte("png-bytes")
	if err := store.Put(ctx, artifacts.KeyFront, "image/png", payload); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	artifact, err := store.Get(ctx, artifacts.KeyFront)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if artifact == nil {
		t.Fatal("expected artifact, got nil")
	}
	if !bytes.Equal(artifact.Payload, payload) {
		t.Fatalf("payload mismatch: %q", artifact.Payload)
	}
	if artifact.ContentType != "image/png" {
		t.Fatalf("unexpected content type %q", artifact.ContentType)
	}
	if artifact.Size != int64(len(payload)) {
		t.Fatalf("unexpected size %d", artifact.Size)
	}
}

func TestPutIsLastWriteWins(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.Put(ctx, artifacts.KeyBack, "image/png", []byte("first")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, artifacts.KeyBack, "image/jpeg", []byte("second")); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	artifact, err := store.Get(ctx, artifacts.KeyBack)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(artifact.Payload) != "second" || artifact.ContentType != "image/jpeg" {
		t.Fatalf("expected last write to win, got %q (%s)", artifact.Payload, artifact.ContentType)
	}
}

func TestPutRejectsUnknownKey(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if err := store.Put(context.Background(), artifacts.Key("selfie"), "image/png", []byte("x")); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	artifact, err := store.Get(context.Background(), artifacts.KeyFaceClip)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if artifact != nil {
		t.Fatalf("expected nil for missing key, got %+v", artifact)
	}
}

func TestRemoveAndClear(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, key := range artifacts.AllKeys() {
		if err := store.Put(ctx, key, "application/octet-stream", []byte("data")); err != nil {
			t.Fatalf("Put %s failed: %v", key, err)
		}
	}

	if err := store.Remove(ctx, artifacts.KeyBack); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	presence, err := store.CheckPresence(ctx)
	if err != nil {
		t.Fatalf("CheckPresence failed: %v", err)
	}
	if presence.HasBack {
		t.Fatal("expected back to be removed")
	}
	if !presence.HasAll() {
		t.Fatal("front and face clip should still satisfy the required set")
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	presence, err = store.CheckPresence(ctx)
	if err != nil {
		t.Fatalf("CheckPresence after clear failed: %v", err)
	}
	if !presence.Empty() {
		t.Fatalf("expected empty store, got %+v", presence)
	}
}

func TestHasRequired(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	ok, err := store.HasRequired(ctx)
	if err != nil {
		t.Fatalf("HasRequired failed: %v", err)
	}
	if ok {
		t.Fatal("empty store should not satisfy required set")
	}

	if err := store.Put(ctx, artifacts.KeyFront, "image/png", []byte("front")); err != nil {
		t.Fatalf("Put front: %v", err)
	}
	ok, _ = store.HasRequired(ctx)
	if ok {
		t.Fatal("front alone should not satisfy required set")
	}

	if err := store.Put(ctx, artifacts.KeyFaceClip, "video/webm", []byte("clip")); err != nil {
		t.Fatalf("Put face clip: %v", err)
	}
	ok, _ = store.HasRequired(ctx)
	if !ok {
		t.Fatal("front + face clip should satisfy required set; back is optional")
	}
}

func TestReopenSurvivesRestart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.Put(ctx, artifacts.KeyFront, "image/png", []byte("persisted")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := artifacts.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	artifact, err := reopened.Get(ctx, artifacts.KeyFront)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if artifact == nil || string(artifact.Payload) != "persisted" {
		t.Fatalf("expected persisted artifact, got %+v", artifact)
	}
}
