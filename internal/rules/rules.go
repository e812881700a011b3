// Package rules loads the per-project rules document and hands it to
// the external evaluation engine. This service never evaluates rules
// itself; it only delivers them.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/gin-gonic/gin"
)

var (
	// ErrRulesUnreadable indicates the rules file could not be read.
	ErrRulesUnreadable = errors.New("rules.unreadable")
	// ErrRulesInvalid indicates the rules file is not valid JSON.
	ErrRulesInvalid = errors.New("rules.invalid_json")
	// ErrRulesNotFound indicates no rules are registered for the project.
	ErrRulesNotFound = errors.New("rules.not_found")
)

// Document is a verbatim JSON rules document.
type Document = json.RawMessage

// Engine receives rules documents for evaluation. The realtime engine
// implements this; Registry implements it for the read-only HTTP
// exposure lifecycle.
type Engine interface {
	SetRules(dbName string, document Document) error
}

// Load reads and validates the rules file. Startup must abort when this
// fails: serving without rules would run the project wide open.
func Load(path string) (Document, error) {
	raw, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, fmt.Errorf("rules.load %s: %w: %v", path, ErrRulesUnreadable, readErr)
	}
	var probe any
	if unmarshalErr := json.Unmarshal(raw, &probe); unmarshalErr != nil {
		return nil, fmt.Errorf("rules.load %s: %w: %v", path, ErrRulesInvalid, unmarshalErr)
	}
	return Document(raw), nil
}

// Registry holds rules per project and serves them read-only.
type Registry struct {
	mutex sync.RWMutex
	byDB  map[string]Document
}

// NewRegistry creates an empty rules registry.
func NewRegistry() *Registry {
	return &Registry{byDB: make(map[string]Document)}
}

// SetRules registers the document for a project.
func (registry *Registry) SetRules(dbName string, document Document) error {
	if dbName == "" {
		return fmt.Errorf("rules.set: empty dbName")
	}
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	registry.byDB[dbName] = document
	return nil
}

// Rules returns the registered document for a project.
func (registry *Registry) Rules(dbName string) (Document, error) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	document, ok := registry.byDB[dbName]
	if !ok {
		return nil, fmt.Errorf("rules.get %s: %w", dbName, ErrRulesNotFound)
	}
	return document, nil
}

// MountRulesRoutes exposes the registry at the internal read-only path.
func MountRulesRoutes(router gin.IRouter, registry *Registry) {
	router.GET("/internal/project/:dbName/rules", func(contextGin *gin.Context) {
		document, rulesErr := registry.Rules(contextGin.Param("dbName"))
		if rulesErr != nil {
			contextGin.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"rules": document})
	})
}
