package sessionkit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors for the token service.
var (
	// ErrSigningKeyMissing indicates the service was asked to sign or verify without a key.
	ErrSigningKeyMissing = errors.New("session_token.missing_signing_key")
	// ErrEmptySubject indicates a payload without a uid was passed to the signer.
	ErrEmptySubject = errors.New("session_token.empty_subject")
	// ErrTokenInvalid indicates signature, encoding, algorithm, or issuer mismatch.
	ErrTokenInvalid = errors.New("session_token.invalid")
	// ErrTokenExpired indicates the token is past its expiry.
	ErrTokenExpired = errors.New("session_token.expired")
)

// SessionPayload is the claim set carried inside a signed session token.
type SessionPayload struct {
	DBName      string
	UID         string
	Email       string
	DisplayName string
	Anonymous   bool
}

// SessionClaims is the wire form of a SessionPayload.
type SessionClaims struct {
	DBName      string `json:"dbName"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Anonymous   bool   `json:"anonymous,omitempty"`
	jwt.RegisteredClaims
}

// Payload converts wire claims back into a SessionPayload.
func (claims *SessionClaims) Payload() SessionPayload {
	return SessionPayload{
		DBName:      claims.DBName,
		UID:         claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		Anonymous:   claims.Anonymous,
	}
}

// Reduced strips the payload down to the fields carried by refresh tokens.
func (payload SessionPayload) Reduced() SessionPayload {
	return SessionPayload{
		DBName:    payload.DBName,
		UID:       payload.UID,
		Anonymous: payload.Anonymous,
	}
}

// MintSessionJWT creates a signed HS256 session token from the payload.
func MintSessionJWT(clock Clock, payload SessionPayload, issuer string, signingKey []byte, ttl time.Duration) (string, time.Time, error) {
	if len(signingKey) == 0 {
		return "", time.Time{}, fmt.Errorf("session_token.mint: %w", ErrSigningKeyMissing)
	}
	if strings.TrimSpace(payload.UID) == "" {
		return "", time.Time{}, fmt.Errorf("session_token.mint: %w", ErrEmptySubject)
	}
	issuedAt := clock.Now().UTC()
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		DBName:      payload.DBName,
		Email:       payload.Email,
		DisplayName: payload.DisplayName,
		Anonymous:   payload.Anonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   payload.UID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, signErr := token.SignedString(signingKey)
	if signErr != nil {
		return "", time.Time{}, fmt.Errorf("session_token.mint: %w", signErr)
	}
	return signed, expiresAt, nil
}

// VerifySessionJWT recovers the payload from a signed token. Verification
// fails closed: any tampering, algorithm mismatch, or issuer mismatch is
// ErrTokenInvalid; expiry is ErrTokenExpired.
func VerifySessionJWT(clock Clock, tokenString string, issuer string, signingKey []byte) (SessionPayload, error) {
	if len(signingKey) == 0 {
		return SessionPayload{}, fmt.Errorf("session_token.verify: %w", ErrSigningKeyMissing)
	}
	if strings.TrimSpace(tokenString) == "" {
		return SessionPayload{}, fmt.Errorf("session_token.verify: %w", ErrTokenInvalid)
	}
	parsedToken, parseErr := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(parsed *jwt.Token) (interface{}, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time {
		return clock.Now()
	}))
	if parseErr != nil {
		if errors.Is(parseErr, jwt.ErrTokenExpired) {
			return SessionPayload{}, fmt.Errorf("session_token.verify: %w", ErrTokenExpired)
		}
		return SessionPayload{}, fmt.Errorf("session_token.verify: %w", ErrTokenInvalid)
	}
	if parsedToken == nil || !parsedToken.Valid {
		return SessionPayload{}, fmt.Errorf("session_token.verify: %w", ErrTokenInvalid)
	}
	claims, ok := parsedToken.Claims.(*SessionClaims)
	if !ok {
		return SessionPayload{}, fmt.Errorf("session_token.verify: %w", ErrTokenInvalid)
	}
	if claims.Issuer != issuer {
		return SessionPayload{}, fmt.Errorf("session_token.verify: %w", ErrTokenInvalid)
	}
	return claims.Payload(), nil
}
