// Package domain contains core business types and interfaces.
//
// This file defines the User domain type. Users are citizens who receive
// challans, and officers, supervisors and admins who issue and manage them.
package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Role is the primary role of a user.
type Role string

const (
	RoleCitizen    Role = "citizen"
	RoleOfficer    Role = "officer"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid returns true if the role is a recognized value.
func (r Role) IsValid() bool {
	switch r {
	case RoleCitizen, RoleOfficer, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}

// IsStaff returns true for roles that work on behalf of the department.
func (r Role) IsStaff() bool {
	return r == RoleOfficer || r == RoleSupervisor || r == RoleAdmin
}

// Grant is a temporary capability given to a single user.
type Grant struct {
	Capability Capability
	ExpiresAt  time.Time
}

// IsActive returns true if the grant has not expired.
func (g Grant) IsActive(now time.Time) bool {
	return now.Before(g.ExpiresAt)
}

// User represents a registered user.
type User struct {
	ID          uuid.UUID
	Name        string
	Email       string
	Phone       string
	Role        Role
	BadgeNumber string // Officers only
	Grants      []Grant
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

// NullStringValue safely extracts a string from sql.NullString.
func NullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// NullTimeValue safely extracts a time pointer from sql.NullTime.
func NullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// ToNullString converts a string to sql.NullString.
func ToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// ToNullTime converts a time pointer to sql.NullTime.
func ToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
