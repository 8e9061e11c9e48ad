package instances

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"time"
)

// Instance holds the input data of an optimization model.
type Instance struct {
	ID          string
	UserID      int64
	Name        string
	Description string
	Schema      string
	Data        map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// ResourceID implements resource.Owned.
func (i *Instance) ResourceID() string { return i.ID }

// OwnerID implements resource.Owned.
func (i *Instance) OwnerID() int64 { return i.UserID }

// NewID derives the instance id from the creation instant and the owner.
// Collisions would need the same user creating two instances in the same
// nanosecond.
func NewID(createdAt time.Time, userID int64) string {
	sum := sha1.Sum([]byte(createdAt.UTC().Format(time.RFC3339Nano) + " " + strconv.FormatInt(userID, 10)))
	return hex.EncodeToString(sum[:])
}
