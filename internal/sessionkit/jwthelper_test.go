package sessionkit

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type fixedClock struct {
	timestamp time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.timestamp
}

func testPayload() SessionPayload {
	return SessionPayload{
		DBName:      "proj1",
		UID:         "user-123",
		Email:       "a@x.com",
		DisplayName: "a@x.com",
	}
}

func TestMintSessionJWTRejectsEmptyUID(t *testing.T) {
	t.Parallel()

	payload := testPayload()
	payload.UID = ""
	_, _, err := MintSessionJWT(fixedClock{timestamp: time.Unix(1700000000, 0)}, payload, "issuer", []byte("signing-key"), time.Minute)
	if err == nil {
		t.Fatalf("expected error when uid is empty")
	}
	if !errors.Is(err, ErrEmptySubject) {
		t.Fatalf("expected ErrEmptySubject, got %v", err)
	}
}

func TestMintSessionJWTRejectsMissingKey(t *testing.T) {
	t.Parallel()

	_, _, err := MintSessionJWT(fixedClock{timestamp: time.Unix(1700000000, 0)}, testPayload(), "issuer", nil, time.Minute)
	if err == nil {
		t.Fatalf("expected error when signing key is missing")
	}
	if !errors.Is(err, ErrSigningKeyMissing) {
		t.Fatalf("expected ErrSigningKeyMissing, got %v", err)
	}
}

func TestMintSessionJWTCarriesClockTimestamps(t *testing.T) {
	t.Parallel()

	reference := time.Unix(1700000000, 0).UTC()
	token, expiresAt, err := MintSessionJWT(fixedClock{timestamp: reference}, testPayload(), "issuer", []byte("signing-key"), 2*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected signed token")
	}
	expectedExpiry := reference.Add(2 * time.Minute)
	if !expiresAt.Equal(expectedExpiry) {
		t.Fatalf("expected expiry %v, got %v", expectedExpiry, expiresAt)
	}
}

func TestVerifySessionJWTRoundTrip(t *testing.T) {
	t.Parallel()

	clock := fixedClock{timestamp: time.Unix(1700000000, 0).UTC()}
	for _, payload := range []SessionPayload{
		testPayload(),
		{DBName: "proj2", UID: "anon-1", Email: "anonymous@anonymous.com", DisplayName: "anonymous", Anonymous: true},
		testPayload().Reduced(),
	} {
		token, _, mintErr := MintSessionJWT(clock, payload, "issuer", []byte("signing-key"), time.Minute)
		if mintErr != nil {
			t.Fatalf("mint error: %v", mintErr)
		}
		recovered, verifyErr := VerifySessionJWT(clock, token, "issuer", []byte("signing-key"))
		if verifyErr != nil {
			t.Fatalf("verify error: %v", verifyErr)
		}
		if recovered != payload {
			t.Fatalf("round trip mismatch: sent %+v, got %+v", payload, recovered)
		}
	}
}

func TestVerifySessionJWTRejectsTampering(t *testing.T) {
	t.Parallel()

	clock := fixedClock{timestamp: time.Unix(1700000000, 0).UTC()}
	token, _, mintErr := MintSessionJWT(clock, testPayload(), "issuer", []byte("signing-key"), time.Minute)
	if mintErr != nil {
		t.Fatalf("mint error: %v", mintErr)
	}

	tampered := token[:len(token)-4] + "AAAA"
	if _, err := VerifySessionJWT(clock, tampered, "issuer", []byte("signing-key")); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for tampered token, got %v", err)
	}

	truncated := token[:len(token)/2]
	if _, err := VerifySessionJWT(clock, truncated, "issuer", []byte("signing-key")); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for truncated token, got %v", err)
	}

	if _, err := VerifySessionJWT(clock, "", "issuer", []byte("signing-key")); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for empty token, got %v", err)
	}
}

func TestVerifySessionJWTRejectsWrongKey(t *testing.T) {
	t.Parallel()

	clock := fixedClock{timestamp: time.Unix(1700000000, 0).UTC()}
	token, _, mintErr := MintSessionJWT(clock, testPayload(), "issuer", []byte("signing-key"), time.Minute)
	if mintErr != nil {
		t.Fatalf("mint error: %v", mintErr)
	}
	if _, err := VerifySessionJWT(clock, token, "issuer", []byte("other-key")); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong key, got %v", err)
	}
}

func TestVerifySessionJWTRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	clock := fixedClock{timestamp: time.Unix(1700000000, 0).UTC()}
	token, _, mintErr := MintSessionJWT(clock, testPayload(), "other-issuer", []byte("signing-key"), time.Minute)
	if mintErr != nil {
		t.Fatalf("mint error: %v", mintErr)
	}
	if _, err := VerifySessionJWT(clock, token, "issuer", []byte("signing-key")); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong issuer, got %v", err)
	}
}

func TestVerifySessionJWTRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	minted := fixedClock{timestamp: time.Unix(1700000000, 0).UTC()}
	token, _, mintErr := MintSessionJWT(minted, testPayload(), "issuer", []byte("signing-key"), time.Minute)
	if mintErr != nil {
		t.Fatalf("mint error: %v", mintErr)
	}
	later := fixedClock{timestamp: minted.timestamp.Add(2 * time.Minute)}
	if _, err := VerifySessionJWT(later, token, "issuer", []byte("signing-key")); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestReducedPayloadDropsProfileFields(t *testing.T) {
	t.Parallel()

	reduced := testPayload().Reduced()
	if reduced.UID != "user-123" || reduced.DBName != "proj1" {
		t.Fatalf("expected uid and dbName to survive, got %+v", reduced)
	}
	if reduced.Email != "" || reduced.DisplayName != "" {
		t.Fatalf("expected profile fields stripped, got %+v", reduced)
	}
	if strings.Contains(reduced.Email, "@") {
		t.Fatalf("reduced payload still carries email")
	}
}
