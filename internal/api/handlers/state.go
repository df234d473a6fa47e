package handlers

import (
	"sync"
	"time"

	"github.com/wonny/churn-mlops/internal/model"
)

// ModelState holds the currently served production model. It is built in
// the api command and passed to handlers explicitly; nothing in this
// package keeps package-level model state.
type ModelState struct {
	modelsDir string

	mu       sync.RWMutex
	bundle   *model.Bundle
	path     string
	loadedAt time.Time
}

// NewModelState creates an empty state bound to the models directory
func NewModelState(modelsDir string) *ModelState {
	return &ModelState{modelsDir: modelsDir}
}

// Get returns the current bundle, or nil when nothing is loaded yet
func (s *ModelState) Get() (*model.Bundle, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle, s.path
}

// Loaded reports whether a model is ready to serve
func (s *ModelState) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle != nil
}

// LoadedAt returns when the current bundle was read from disk
func (s *ModelState) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Reload reads the production alias from disk and swaps it in atomically.
// Concurrent requests keep seeing the previous bundle until the swap.
func (s *ModelState) Reload() error {
	bundle, path, err := model.LoadProduction(s.modelsDir)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.bundle = bundle
	s.path = path
	s.loadedAt = time.Now().UTC()
	s.mu.Unlock()

	return nil
}

// EnsureLoaded loads the production model on first use
func (s *ModelState) EnsureLoaded() error {
	if s.Loaded() {
		return nil
	}
	return s.Reload()
}
