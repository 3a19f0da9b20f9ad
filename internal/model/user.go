package model

import (
	"time"

	"github.com/google/uuid"
)

type UserType string

const (
	UserTypePatient UserType = "patient"
	UserTypeDoctor  UserType = "doctor"
)

// User is a participant record the Directory resolves queue slots into.
// Identity and credentials live with the upstream identity provider; the
// core only stores what it needs for display and clinic scoping.
type User struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Email     string     `db:"email" json:"email"`
	UserType  UserType   `db:"user_type" json:"user_type"`
	ClinicID  *uuid.UUID `db:"clinic_id" json:"clinic_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

type CreateParticipantRequest struct {
	Name     string     `json:"name" binding:"required" validate:"required"`
	Email    string     `json:"email" binding:"required,email" validate:"required,email"`
	UserType UserType   `json:"user_type" binding:"required" validate:"required,oneof=patient doctor"`
	ClinicID *uuid.UUID `json:"clinic_id"`
}
