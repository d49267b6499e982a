package domain

import "time"

// Group is the coarse role attached to a user account.
type Group string

const (
	GroupAdmin    Group = "admin"
	GroupMember   Group = "member"
	GroupReadonly Group = "readonly"
)

// Valid reports whether g is a known group.
func (g Group) Valid() bool {
	switch g {
	case GroupAdmin, GroupMember, GroupReadonly:
		return true
	}
	return false
}

type User struct {
	ID            int64
	Pseudo        string
	Email         string
	PasswordHash  string     // argon2id PHC string
	Group         Group
	TOTPSecret    *string    // base32, set once enrolment starts
	TOTPEnabledAt *time.Time // nil until the first code is verified
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TOTPEnabled reports whether login requires a second factor.
func (u User) TOTPEnabled() bool {
	return u.TOTPEnabledAt != nil && u.TOTPSecret != nil
}
