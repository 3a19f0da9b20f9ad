package ws

import (
	"github.com/jwalitptl/queue-api/internal/model"
)

// Inbound intents. Each frame names a queue by code; enter_queue and
// remove_participant also carry a participant id, view_queue optionally
// carries the viewer's identity for presence.
const (
	IntentEnterQueue        = "enter_queue"
	IntentViewQueue         = "view_queue"
	IntentStartAppointment  = "start_appointment"
	IntentEndAppointment    = "end_appointment"
	IntentSetReady          = "set_ready"
	IntentSetWaiting        = "set_waiting"
	IntentRemoveParticipant = "remove_participant"
)

// Outbound events, broadcast to every member of the queue's room.
const (
	EventStatusChanged      = "status_changed"
	EventUsersChanged       = "users_changed"
	EventParticipantEntered = "participant_entered"
	EventParticipantLeft    = "participant_left"
)

// Frame is an inbound client message.
type Frame struct {
	Type          string `json:"type"`
	Code          string `json:"code"`
	ParticipantID string `json:"participant_id,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
}

// Event is an outbound room message.
type Event struct {
	Type    string      `json:"type"`
	Code    string      `json:"code"`
	Payload interface{} `json:"payload"`
}

// StatusPayload accompanies status_changed.
type StatusPayload struct {
	Status model.QueueStatus `json:"status"`
}

// ParticipantsPayload accompanies users_changed, participant_entered and
// participant_left. The list is resolved and sentinel-filtered.
type ParticipantsPayload struct {
	Participants []*model.User `json:"participants"`
}
