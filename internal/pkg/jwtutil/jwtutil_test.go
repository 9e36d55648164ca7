package jwtutil

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndParse(t *testing.T) {
	signed, claims, err := GenerateToken("s3cret", time.Minute, 7, TokenTypeRefresh)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	parsed, err := ParseToken("s3cret", signed, TokenTypeRefresh)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.UserID != 7 || parsed.ID != claims.ID || parsed.ID == "" {
		t.Fatalf("unexpected claims %+v", parsed)
	}
}

func TestParseRejectsWrongTypeSecretAndExpiry(t *testing.T) {
	access, _, _ := GenerateToken("s3cret", time.Minute, 1, TokenTypeAccess)
	if _, err := ParseToken("s3cret", access, TokenTypeRefresh); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected wrong type, got %v", err)
	}
	if _, err := ParseToken("other", access, TokenTypeAccess); err == nil {
		t.Fatalf("expected signature error")
	}
	expired, _, _ := GenerateToken("s3cret", -time.Minute, 1, TokenTypeAccess)
	if _, err := ParseToken("s3cret", expired, TokenTypeAccess); err == nil {
		t.Fatalf("expected expiry error")
	}
}
