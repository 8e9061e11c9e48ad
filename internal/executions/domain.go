package executions

import "time"

// State is the lifecycle position of an execution. It is domain data
// persisted with the row; nothing here schedules or runs solvers.
type State string

const (
	StateCreated State = "created"
	StateRunning State = "running"
	StateDone    State = "done"
	StateError   State = "error"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateCreated, StateRunning, StateDone, StateError:
		return true
	}
	return false
}

// Execution is a solver run over an instance: its configuration and,
// once finished, its results.
type Execution struct {
	ID          string
	UserID      int64
	InstanceID  string
	Name        string
	Description string
	Config      map[string]any
	Data        map[string]any
	State       State
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// ResourceID implements resource.Owned.
func (e *Execution) ResourceID() string { return e.ID }

// OwnerID implements resource.Owned.
func (e *Execution) OwnerID() int64 { return e.UserID }
