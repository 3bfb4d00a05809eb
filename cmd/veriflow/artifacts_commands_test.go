package main

import (
	"context"
	"testing"

	"veriflow/internal/artifacts"
	"veriflow/internal/config"
)

func TestArtifactsListAndClear(t *testing.T) {
	configPath := writeTestConfig(t)

	out, _, err := runCLI(t, configPath, "artifacts", "list")
	if err != nil {
		t.Fatalf("artifacts list: %v", err)
	}
	requireContains(t, out, "No artifacts captured")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	store, err := artifacts.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Put(context.Background(), artifacts.KeyFront, "image/png", []byte("front-bytes")); err != nil {
		t.Fatalf("seed artifact: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	out, _, err = runCLI(t, configPath, "artifacts", "list")
	if err != nil {
		t.Fatalf("artifacts list after seed: %v", err)
	}
	requireContains(t, out, "front")
	requireContains(t, out, "image/png")

	out, _, err = runCLI(t, configPath, "artifacts", "clear")
	if err != nil {
		t.Fatalf("artifacts clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 artifact(s)")

	out, _, err = runCLI(t, configPath, "artifacts", "clear")
	if err != nil {
		t.Fatalf("artifacts clear empty: %v", err)
	}
	requireContains(t, out, "No artifacts to clear")
}
