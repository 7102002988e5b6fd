package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/gopherchat/gopherchat/internal/common"
)

const testSecret = "unit-test-secret"

func TestSignAndParseRoundTrip(t *testing.T) {
	token, err := SignShareToken(testSecret, "01CONV0000000000000000000A", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	id, issuedAt, err := ParseShareToken(testSecret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != "01CONV0000000000000000000A" {
		t.Fatalf("unexpected conversation id: %q", id)
	}
	if time.Since(issuedAt) > time.Minute || issuedAt.IsZero() {
		t.Fatalf("unexpected issued-at: %v", issuedAt)
	}
}

func TestParseExpiredToken(t *testing.T) {
	token, err := SignShareToken(testSecret, "01CONV0000000000000000000A", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, _, err := ParseShareToken(testSecret, token); !errors.Is(err, common.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestParseWrongSecret(t *testing.T) {
	token, err := SignShareToken(testSecret, "01CONV0000000000000000000A", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, _, err := ParseShareToken("other-secret", token); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseGarbage(t *testing.T) {
	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, _, err := ParseShareToken(testSecret, token); !errors.Is(err, common.ErrNotFound) {
			t.Fatalf("token %q: expected ErrNotFound, got %v", token, err)
		}
	}
}
