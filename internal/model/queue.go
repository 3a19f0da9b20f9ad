package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type QueueStatus string

const (
	QueueStatusWaiting    QueueStatus = "waiting"
	QueueStatusReady      QueueStatus = "ready"
	QueueStatusInProgress QueueStatus = "in_progress"
	QueueStatusDone       QueueStatus = "done"
)

// Valid reports whether s is one of the four defined statuses.
func (s QueueStatus) Valid() bool {
	switch s {
	case QueueStatusWaiting, QueueStatusReady, QueueStatusInProgress, QueueStatusDone:
		return true
	}
	return false
}

// SentinelParticipantID is the reserved id written over the head slot when an
// appointment finishes. It marks "served, not yet advanced" and is never
// issued to a real participant (real ids are v4 UUIDs).
const SentinelParticipantID = "00000000-0000-0000-0000-000000000000"

// Queue is an ordered waiting line for one doctor at one clinic.
// Participants holds participant ids in line order; the head is slot 0.
// Revision increments on every participants/status write and is asserted by
// writers so concurrent mutations cannot silently overwrite each other.
type Queue struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	Code         string         `db:"code" json:"code"`
	Participants pq.StringArray `db:"participants" json:"participants"`
	OwnerID      uuid.UUID      `db:"owner_id" json:"owner_id"`
	ClinicID     uuid.UUID      `db:"clinic_id" json:"clinic_id"`
	Status       QueueStatus    `db:"status" json:"status"`
	Revision     int64          `db:"revision" json:"-"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// ResolvedQueue is a queue whose participant ids have been expanded into full
// user records, in stored order, with the sentinel filtered out.
type ResolvedQueue struct {
	ID           uuid.UUID   `json:"id"`
	Code         string      `json:"code"`
	OwnerID      uuid.UUID   `json:"owner_id"`
	ClinicID     uuid.UUID   `json:"clinic_id"`
	Status       QueueStatus `json:"status"`
	Participants []*User     `json:"participants"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// FilterSentinel returns ids with every sentinel entry removed, preserving
// order. The stored list keeps sentinels until the line advances; anything
// display-facing goes through this first.
func FilterSentinel(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == SentinelParticipantID {
			continue
		}
		out = append(out, id)
	}
	return out
}

type CreateQueueRequest struct {
	OwnerID  uuid.UUID `json:"owner_id" binding:"required" validate:"required"`
	ClinicID uuid.UUID `json:"clinic_id" binding:"required" validate:"required"`
}

type JoinQueueRequest struct {
	ParticipantID uuid.UUID `json:"participant_id" binding:"required" validate:"required"`
}

type ChangeStatusRequest struct {
	Status QueueStatus `json:"status" binding:"required" validate:"required"`
}
