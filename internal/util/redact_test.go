package util

import (
	"strings"
	"testing"
)

func TestRedactToken(t *testing.T) {
	token := "eyJ0eXAiOiJKV1QiLCJhbGciOiJSUzI1NiJ9"
	got := RedactToken(token)

	if strings.Contains(got, token) {
		t.Fatalf("redacted form still contains the token: %q", got)
	}
	if got != "eyJ0***NiJ9" {
		t.Fatalf("unexpected redaction %q", got)
	}

	// Short secrets are fully masked.
	if got := RedactToken("short"); got != "***" {
		t.Fatalf("short token not fully masked: %q", got)
	}
	if got := RedactToken(""); got != "***" {
		t.Fatalf("empty token not fully masked: %q", got)
	}
}

func TestScrubToken(t *testing.T) {
	msg := `POST failed: Authorization: Bearer tok-123 (request id 7)`
	got := ScrubToken(msg, "tok-123")
	if strings.Contains(got, "tok-123") {
		t.Fatalf("token survived scrubbing: %q", got)
	}
	if !strings.Contains(got, "*****") {
		t.Fatalf("no mask inserted: %q", got)
	}

	// Empty token is a no-op.
	if got := ScrubToken(msg, ""); got != msg {
		t.Fatalf("empty token must not alter the message")
	}
}
