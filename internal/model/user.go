package model

import (
	"github.com/google/uuid"
)

// Role separates the two kinds of account the clinic knows about.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// User represents a system user
type User struct {
	Base
	Email          string  `json:"email" db:"email"`
	Name           string  `json:"name" db:"name"`
	PasswordHash   string  `json:"-" db:"password_hash"`
	Role           Role    `json:"role" db:"role"`
	Phone          *string `json:"phone,omitempty" db:"phone"`
	Specialization *string `json:"specialization,omitempty" db:"specialization"`
}

// UserSummary is the snapshot inlined into resolved references.
type UserSummary struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	Role           Role      `json:"role,omitempty"`
	Specialization *string   `json:"specialization,omitempty"`
}

func (s UserSummary) Identity() string {
	if s.ID == uuid.Nil {
		return ""
	}
	return s.ID.String()
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           u.Role,
		Specialization: u.Specialization,
	}
}

// UserRef is a doctor or patient reference.
type UserRef = Reference[UserSummary]

type UserFilters struct {
	Role Role
}
