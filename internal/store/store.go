// Package store persists finished optimization runs.
package store

import (
	"context"
	"fmt"
	"time"
)

// Run is the persisted record of one optimization job.
type Run struct {
	ID          string     `json:"id"`
	Objective   string     `json:"objective"`
	Status      string     `json:"status"`
	X           []float64  `json:"x,omitempty"`
	F           *float64   `json:"f,omitempty"`
	Iterations  int        `json:"iterations"`
	Evaluations int        `json:"evaluations"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Store is the persistence contract for runs.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	// ListRuns returns at most limit runs, most recently started first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

const defaultListLimit = 50

// NewStore builds a store of the given kind: "memory" (or empty) or
// "sqlite", in which case dsn is handed to the SQLite driver.
func NewStore(kind, dsn string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// CloseIfSupported closes store when it holds resources.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
