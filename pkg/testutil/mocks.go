// Package testutil provides common testing utilities and mock implementations.
package testutil

import (
	"context"
	"sync"

	"github.com/hbnb-network/catalog_layer/internal/app/storage"
)

// FailingEngine is a storage.Engine whose sessions can never be opened.
type FailingEngine struct {
	Err error

	mu    sync.Mutex
	opens int
}

// NewFailingEngine returns an engine that fails every Open with err.
func NewFailingEngine(err error) *FailingEngine {
	return &FailingEngine{Err: err}
}

// Name implements storage.Engine.
func (e *FailingEngine) Name() string { return "failing" }

// Reload implements storage.Engine.
func (e *FailingEngine) Reload(context.Context) error { return e.Err }

// Open records the attempt and returns Err.
func (e *FailingEngine) Open(context.Context) (storage.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opens++
	return nil, e.Err
}

// Close implements storage.Engine.
func (e *FailingEngine) Close() error { return nil }

// Opens returns how many sessions were requested.
func (e *FailingEngine) Opens() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opens
}
