package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/pkg/metrics"
)

// QueueEngine is the slice of the queue service the gateway drives.
type QueueEngine interface {
	Enqueue(ctx context.Context, code string, participantID uuid.UUID) (*model.Queue, error)
	RemoveParticipant(ctx context.Context, code string, participantID uuid.UUID) (*model.Queue, error)
	SetReady(ctx context.Context, code string) (*model.Queue, error)
	StartAppointment(ctx context.Context, code string) (*model.Queue, error)
	EndAppointment(ctx context.Context, code string) (*model.Queue, error)
	AdvanceToNextAppointment(ctx context.Context, code string) (*model.Queue, error)
}

// Directory resolves participant lists for outbound events.
type Directory interface {
	ResolveParticipants(ctx context.Context, ids []string) ([]*model.User, error)
}

// PresenceEntry is the optional identity a viewer registers with view_queue.
// Process-local, informational only, cleared silently on disconnect.
type PresenceEntry struct {
	ParticipantID string
	DisplayName   string
	Code          string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Gateway bridges engine mutations to room subscribers. It is the only
// component that emits state-change events, and it emits them only after the
// store write succeeded.
type Gateway struct {
	hub         *Hub
	engine      QueueEngine
	directory   Directory
	broadcaster Broadcaster
	metrics     *metrics.Metrics
	logger      zerolog.Logger

	mu       sync.Mutex
	presence map[*Client]PresenceEntry
}

func NewGateway(hub *Hub, engine QueueEngine, directory Directory, broadcaster Broadcaster, m *metrics.Metrics, logger zerolog.Logger) *Gateway {
	return &Gateway{
		hub:         hub,
		engine:      engine,
		directory:   directory,
		broadcaster: broadcaster,
		metrics:     m,
		logger:      logger.With().Str("component", "gateway").Logger(),
		presence:    make(map[*Client]PresenceEntry),
	}
}

// HandleWS upgrades the connection and runs the client's pumps.
func (g *Gateway) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(g.hub, conn, g.logger)
	if g.metrics != nil {
		g.metrics.ActiveConnections.Inc()
	}

	go client.writePump()
	client.readPump(g.dispatch, func(cl *Client) {
		g.clearPresence(cl)
		if g.metrics != nil {
			g.metrics.ActiveConnections.Dec()
		}
	})
}

// dispatch handles one inbound frame. Errors are logged and swallowed: a
// failed mutation emits nothing, leaving every viewer consistent with the
// last successful write.
func (g *Gateway) dispatch(client *Client, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		g.logger.Warn().Err(err).Msg("dropping malformed frame")
		return
	}
	if frame.Code == "" {
		g.logger.Warn().Str("type", frame.Type).Msg("dropping frame without queue code")
		return
	}

	ctx := context.Background()
	var err error

	switch frame.Type {
	case IntentEnterQueue:
		err = g.handleEnterQueue(ctx, client, frame)
	case IntentViewQueue:
		g.handleViewQueue(client, frame)
	case IntentStartAppointment:
		err = g.handleStatusIntent(ctx, frame.Code, g.engine.StartAppointment)
	case IntentSetReady:
		err = g.handleStatusIntent(ctx, frame.Code, g.engine.SetReady)
	case IntentEndAppointment:
		err = g.handleEndAppointment(ctx, frame)
	case IntentSetWaiting:
		err = g.handleSetWaiting(ctx, frame)
	case IntentRemoveParticipant:
		err = g.handleRemoveParticipant(ctx, frame)
	default:
		g.logger.Warn().Str("type", frame.Type).Msg("unknown intent")
		return
	}

	if err != nil {
		if g.metrics != nil {
			g.metrics.IntentErrors.WithLabelValues(frame.Type).Inc()
		}
		g.logger.Error().Err(err).Str("intent", frame.Type).Str("code", frame.Code).Msg("intent failed")
	}
}

func (g *Gateway) handleEnterQueue(ctx context.Context, client *Client, frame Frame) error {
	participantID, err := uuid.Parse(frame.ParticipantID)
	if err != nil {
		return err
	}

	g.hub.Join(client, frame.Code)

	q, err := g.engine.Enqueue(ctx, frame.Code, participantID)
	if err != nil {
		return err
	}

	users, err := g.directory.ResolveParticipants(ctx, q.Participants)
	if err != nil {
		return err
	}
	g.QueueUsersChanged(ctx, frame.Code, users)
	g.ParticipantEntered(ctx, frame.Code, users)
	return nil
}

func (g *Gateway) handleViewQueue(client *Client, frame Frame) {
	g.hub.Join(client, frame.Code)

	if frame.ParticipantID == "" {
		return
	}
	g.mu.Lock()
	g.presence[client] = PresenceEntry{
		ParticipantID: frame.ParticipantID,
		DisplayName:   frame.DisplayName,
		Code:          frame.Code,
	}
	g.mu.Unlock()
}

func (g *Gateway) handleStatusIntent(ctx context.Context, code string, op func(context.Context, string) (*model.Queue, error)) error {
	q, err := op(ctx, code)
	if err != nil {
		return err
	}
	g.QueueStatusChanged(ctx, code, q.Status)
	return nil
}

func (g *Gateway) handleEndAppointment(ctx context.Context, frame Frame) error {
	q, err := g.engine.EndAppointment(ctx, frame.Code)
	if err != nil {
		return err
	}

	g.QueueStatusChanged(ctx, frame.Code, q.Status)

	users, err := g.directory.ResolveParticipants(ctx, q.Participants)
	if err != nil {
		return err
	}
	g.QueueUsersChanged(ctx, frame.Code, users)
	g.ParticipantLeft(ctx, frame.Code, users)
	return nil
}

func (g *Gateway) handleSetWaiting(ctx context.Context, frame Frame) error {
	q, err := g.engine.AdvanceToNextAppointment(ctx, frame.Code)
	if err != nil {
		return err
	}

	g.QueueStatusChanged(ctx, frame.Code, q.Status)

	users, err := g.directory.ResolveParticipants(ctx, q.Participants)
	if err != nil {
		return err
	}
	g.QueueUsersChanged(ctx, frame.Code, users)
	return nil
}

func (g *Gateway) handleRemoveParticipant(ctx context.Context, frame Frame) error {
	participantID, err := uuid.Parse(frame.ParticipantID)
	if err != nil {
		return err
	}

	q, err := g.engine.RemoveParticipant(ctx, frame.Code, participantID)
	if err != nil {
		return err
	}

	users, err := g.directory.ResolveParticipants(ctx, q.Participants)
	if err != nil {
		return err
	}
	g.QueueUsersChanged(ctx, frame.Code, users)
	g.ParticipantLeft(ctx, frame.Code, users)
	return nil
}

// QueueStatusChanged broadcasts the queue's new status to its room.
func (g *Gateway) QueueStatusChanged(ctx context.Context, code string, status model.QueueStatus) {
	g.emit(ctx, code, Event{
		Type:    EventStatusChanged,
		Code:    code,
		Payload: StatusPayload{Status: status},
	})
}

// QueueUsersChanged broadcasts the resolved participant list to the room.
func (g *Gateway) QueueUsersChanged(ctx context.Context, code string, users []*model.User) {
	g.emit(ctx, code, Event{
		Type:    EventUsersChanged,
		Code:    code,
		Payload: ParticipantsPayload{Participants: users},
	})
}

// ParticipantEntered announces a new line member to the room.
func (g *Gateway) ParticipantEntered(ctx context.Context, code string, users []*model.User) {
	g.emit(ctx, code, Event{
		Type:    EventParticipantEntered,
		Code:    code,
		Payload: ParticipantsPayload{Participants: users},
	})
}

// ParticipantLeft announces a departure to the room.
func (g *Gateway) ParticipantLeft(ctx context.Context, code string, users []*model.User) {
	g.emit(ctx, code, Event{
		Type:    EventParticipantLeft,
		Code:    code,
		Payload: ParticipantsPayload{Participants: users},
	})
}

// Presence returns the registered viewers of one queue code.
func (g *Gateway) Presence(code string) []PresenceEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []PresenceEntry
	for _, entry := range g.presence {
		if entry.Code == code {
			out = append(out, entry)
		}
	}
	return out
}

func (g *Gateway) emit(ctx context.Context, code string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		g.logger.Error().Err(err).Str("event", event.Type).Msg("failed to marshal event")
		return
	}
	if err := g.broadcaster.Broadcast(ctx, code, data); err != nil {
		g.logger.Error().Err(err).Str("event", event.Type).Str("code", code).Msg("broadcast failed")
		return
	}
	if g.metrics != nil {
		g.metrics.BroadcastsTotal.WithLabelValues(event.Type).Inc()
	}
}

func (g *Gateway) clearPresence(client *Client) {
	g.mu.Lock()
	delete(g.presence, client)
	g.mu.Unlock()
}
