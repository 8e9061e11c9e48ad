package auth

import "time"

// AuthSource distinguishes locally managed accounts from federated ones.
type AuthSource string

const (
	// SourceDB marks users created through signup and stored locally.
	SourceDB AuthSource = "db"
	// SourceLDAP marks users mirrored from a directory. Their profile is
	// managed there; edits through the API answer 501.
	SourceLDAP AuthSource = "ldap"
)

// User represents a user account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Source       AuthSource
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
