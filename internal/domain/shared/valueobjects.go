// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"strings"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID identifies a user in the external identity provider. Tokens carry it
// in the "sub" claim as a UUID.
type UserID string

// IsValid checks that the ID is a canonical lowercase UUID.
func (u UserID) IsValid() bool {
	parsed, err := uuid.Parse(string(u))
	return err == nil && parsed.String() == string(u)
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the user ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID validates id and returns it in canonical form (lowercase,
// hyphenated). Braced and urn:uuid: forms are accepted.
func NewUserID(id string) (UserID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", NewDomainError("shared", "NewUserID", ErrEmptyValue, "user ID cannot be empty")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", ErrInvalidUserID
	}
	return UserID(parsed.String()), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Rank is a 1-based position on the XP leaderboard. Zero means unranked.
type Rank int

// IsUnranked reports whether the user has no position yet.
func (r Rank) IsUnranked() bool {
	return r <= 0
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination clamps a requested page size.
type Pagination struct {
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}
