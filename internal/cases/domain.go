package cases

import "time"

// Case is a saved scenario: a snapshot of model data, optionally with the
// solution it was solved to. Cases keep their own copy of the data, so
// they outlive the instance or execution they were created from.
type Case struct {
	ID          string
	UserID      int64
	Name        string
	Description string
	Schema      string
	InstanceID  string
	ExecutionID string
	Data        map[string]any
	Solution    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// ResourceID implements resource.Owned.
func (c *Case) ResourceID() string { return c.ID }

// OwnerID implements resource.Owned.
func (c *Case) OwnerID() int64 { return c.UserID }
