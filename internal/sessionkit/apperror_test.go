package sessionkit

import (
	"net/http"
	"testing"
)

func TestForbiddenShape(t *testing.T) {
	t.Parallel()

	appErr := Forbidden("Bad Login", map[string][]string{"email": {"User email or password does not exist"}})
	if appErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", appErr.StatusCode)
	}
	if appErr.ErrorType != "Forbidden" {
		t.Fatalf("expected errorType Forbidden, got %s", appErr.ErrorType)
	}
	if appErr.Message != "Bad Login" {
		t.Fatalf("expected message Bad Login, got %s", appErr.Message)
	}
	if len(appErr.Data["email"]) != 1 {
		t.Fatalf("expected email field data, got %v", appErr.Data)
	}
}

func TestBadRequestShape(t *testing.T) {
	t.Parallel()

	appErr := BadRequest("Validation failed", nil)
	if appErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", appErr.StatusCode)
	}
	if appErr.ErrorType != "Bad Request" {
		t.Fatalf("expected errorType Bad Request, got %s", appErr.ErrorType)
	}
}

func TestAppErrorErrorString(t *testing.T) {
	t.Parallel()

	appErr := ServiceUnavailable("User store unreachable")
	expected := "Service Unavailable: User store unreachable"
	if appErr.Error() != expected {
		t.Fatalf("expected %q, got %q", expected, appErr.Error())
	}
}

func TestEnvelopeOmitsEmptyData(t *testing.T) {
	t.Parallel()

	envelope := envelopeFor(BadRequest("Validation failed", nil))
	if envelope.Error.Data != nil {
		t.Fatalf("expected nil data, got %v", envelope.Error.Data)
	}
	if envelope.Error.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 in envelope, got %d", envelope.Error.StatusCode)
	}
}
