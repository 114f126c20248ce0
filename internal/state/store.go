// Package state persists the per-user conversation state shared by the
// planning and deep-work flows.
package state

import (
	"context"
	"time"
)

// Name is a conversation state.
type Name string

const (
	Idle                     Name = "idle"
	AwaitingTasksList        Name = "awaiting_tasks_list"
	AwaitingDeepWorkDuration Name = "awaiting_deepwork_duration"
)

// Entry is the stored state for one user.
type Entry struct {
	UserID    string
	State     Name
	Data      map[string]any
	ExpiresAt time.Time
}

// Store reads and writes conversation state. An entry past its ExpiresAt is
// reported as absent. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the user's current state, or ok=false when idle.
	Get(ctx context.Context, userID string) (e Entry, ok bool, err error)
	// Set upserts the user's state.
	Set(ctx context.Context, userID string, s Name, data map[string]any) error
	// Clear returns the user to idle. Clearing an idle user is not an error.
	Clear(ctx context.Context, userID string) error
}
