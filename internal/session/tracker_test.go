package session_test

import (
	"testing"

	"veriflow/internal/session"
	"veriflow/internal/testsupport"
)

func TestTrackerPersistsAcrossReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	tracker := testsupport.MustOpenTracker(t, cfg)
	err := tracker.Update(func(s *session.State) {
		s.Token = "tok-123"
		s.Country = "DE"
		s.DocumentType = session.DocumentPassport
		s.AgreedToTerms = true
		s.UploadDocumentFront = true
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	reopened := testsupport.MustOpenTracker(t, cfg)
	state := reopened.Snapshot()
	if state.Token != "tok-123" || state.Country != "DE" {
		t.Fatalf("unexpected reloaded state: %+v", state)
	}
	if !state.AgreedToTerms || !state.UploadDocumentFront {
		t.Fatalf("expected flags to survive reload: %+v", state)
	}
}

func TestTrackerReset(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tracker := testsupport.MustOpenTracker(t, cfg)

	if err := tracker.Update(func(s *session.State) { s.Token = "tok" }); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := tracker.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if state := tracker.Snapshot(); state.Token != "" {
		t.Fatalf("expected cleared state, got %+v", state)
	}

	reopened := testsupport.MustOpenTracker(t, cfg)
	if state := reopened.Snapshot(); state.Token != "" {
		t.Fatalf("expected reset to persist, got %+v", state)
	}
}

func TestParseDocumentType(t *testing.T) {
	cases := []struct {
		input string
		want  session.DocumentType
		ok    bool
	}{
		{"passport", session.DocumentPassport, true},
		{" Driver ", session.DocumentDriver, true},
		{"ID", session.DocumentID, true},
		{"visa", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := session.ParseDocumentType(tc.input)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseDocumentType(%q) = %q, %v; want %q, %v", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestBackRequired(t *testing.T) {
	if session.DocumentPassport.BackRequired() {
		t.Fatal("passport should not require a back capture")
	}
	if !session.DocumentDriver.BackRequired() || !session.DocumentID.BackRequired() {
		t.Fatal("driver and id documents require a back capture")
	}
}

func TestNormalizeCountry(t *testing.T) {
	got, err := session.NormalizeCountry("de")
	if err != nil {
		t.Fatalf("NormalizeCountry failed: %v", err)
	}
	if got != "DE" {
		t.Fatalf("expected DE, got %q", got)
	}
	if _, err := session.NormalizeCountry("ZZZZ"); err == nil {
		t.Fatal("expected error for invalid region")
	}
	if _, err := session.NormalizeCountry(""); err == nil {
		t.Fatal("expected error for empty code")
	}
}
