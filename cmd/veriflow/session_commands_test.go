package main

import (
	"testing"
)

func TestSessionSetShowReset(t *testing.T) {
	configPath := writeTestConfig(t)

	out, _, err := runCLI(t, configPath, "session", "show")
	if err != nil {
		t.Fatalf("session show: %v", err)
	}
	requireContains(t, out, "Token: -")

	_, _, err = runCLI(t, configPath, "session", "set",
		"--token", "tok-123",
		"--country", "us",
		"--document-type", "passport",
		"--agree-terms",
		"--agree-camera",
	)
	if err != nil {
		t.Fatalf("session set: %v", err)
	}

	out, _, err = runCLI(t, configPath, "session", "show")
	if err != nil {
		t.Fatalf("session show after set: %v", err)
	}
	requireContains(t, out, "Token: tok-123")
	requireContains(t, out, "Country: US")
	requireContains(t, out, "Document type: passport")
	requireContains(t, out, "Terms agreed: yes")
	requireContains(t, out, "Camera agreed: yes")

	_, _, err = runCLI(t, configPath, "session", "reset")
	if err != nil {
		t.Fatalf("session reset: %v", err)
	}
	out, _, err = runCLI(t, configPath, "session", "show")
	if err != nil {
		t.Fatalf("session show after reset: %v", err)
	}
	requireContains(t, out, "Token: -")
}

func TestSessionSetRejectsUnknownDocumentType(t *testing.T) {
	configPath := writeTestConfig(t)

	_, _, err := runCLI(t, configPath, "session", "set", "--document-type", "visa")
	if err == nil {
		t.Fatal("expected error for unknown document type")
	}
}

func TestSessionSetRequiresAtLeastOneFlag(t *testing.T) {
	configPath := writeTestConfig(t)

	_, _, err := runCLI(t, configPath, "session", "set")
	if err == nil {
		t.Fatal("expected error when no flags are given")
	}
}
