package rules

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
)

func writeRulesFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}
	return path
}

func TestLoadValidRules(t *testing.T) {
	t.Parallel()

	path := writeRulesFile(t, `{"collections":{"notes":{"read":true,"write":"auth"}}}`)
	document, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(document) == 0 {
		t.Fatalf("expected non-empty document")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, ErrRulesUnreadable) {
		t.Fatalf("expected ErrRulesUnreadable, got %v", err)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	t.Parallel()

	path := writeRulesFile(t, `{"collections":`)
	_, err := Load(path)
	if !errors.Is(err, ErrRulesInvalid) {
		t.Fatalf("expected ErrRulesInvalid, got %v", err)
	}
}

func TestRegistrySetAndGet(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	document := Document(`{"read":true}`)
	if err := registry.SetRules("proj1", document); err != nil {
		t.Fatalf("set error: %v", err)
	}

	got, getErr := registry.Rules("proj1")
	if getErr != nil {
		t.Fatalf("get error: %v", getErr)
	}
	if string(got) != `{"read":true}` {
		t.Fatalf("expected document verbatim, got %s", got)
	}

	if _, missingErr := registry.Rules("proj2"); !errors.Is(missingErr, ErrRulesNotFound) {
		t.Fatalf("expected ErrRulesNotFound, got %v", missingErr)
	}
}

func TestRegistryRejectsEmptyDBName(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if err := registry.SetRules("", Document(`{}`)); err == nil {
		t.Fatalf("expected error for empty dbName")
	}
}

func TestRulesRouteServesDocumentVerbatim(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := NewRegistry()
	if err := registry.SetRules("proj1", Document(`{"collections":{"notes":{"read":true}}}`)); err != nil {
		t.Fatalf("set error: %v", err)
	}

	router := gin.New()
	MountRulesRoutes(router, registry)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/internal/project/proj1/rules", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var body struct {
		Rules json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if string(body.Rules) != `{"collections":{"notes":{"read":true}}}` {
		t.Fatalf("expected document verbatim, got %s", body.Rules)
	}
}

func TestRulesRouteUnknownProject(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	MountRulesRoutes(router, NewRegistry())

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/internal/project/ghost/rules", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}
