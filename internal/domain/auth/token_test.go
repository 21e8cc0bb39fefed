package auth

import (
	"testing"
	"time"
)

func TestSessionToken_RoundTrip(t *testing.T) {
	st := NewSessionToken("test-secret")

	token, err := st.Generate("session-123")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	ok, sessionID, err := st.Verify(token)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok || sessionID != "session-123" {
		t.Fatalf("unexpected verification result: ok=%v id=%s", ok, sessionID)
	}
}

func TestSessionToken_RejectsWrongSecret(t *testing.T) {
	token, err := NewSessionToken("secret-a").Generate("session-123")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	if ok, _, err := NewSessionToken("secret-b").Verify(token); err == nil || ok {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestSessionToken_RejectsExpired(t *testing.T) {
	st := NewSessionToken("test-secret")
	st.ttl = -time.Minute

	token, err := st.Generate("session-123")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	if ok, _, err := st.Verify(token); err == nil || ok {
		t.Fatal("expected verification failure for expired token")
	}
}

func TestSessionToken_EmptySecret(t *testing.T) {
	st := NewSessionToken("")
	if _, err := st.Generate("session-123"); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
