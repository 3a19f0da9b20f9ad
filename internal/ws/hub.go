package ws

import (
	"context"

	"github.com/jwalitptl/queue-api/pkg/metrics"
)

// RoomMessage is a payload addressed to every member of one room.
type RoomMessage struct {
	Room string
	Data []byte
}

type subscription struct {
	client *Client
	room   string
}

// Hub tracks which connections observe which queue rooms and fans broadcasts
// out to them. All membership state is owned by the Run goroutine; the
// exported methods only push onto channels, so no locking is needed.
type Hub struct {
	rooms   map[string]map[*Client]bool
	members map[*Client]map[string]bool

	join       chan subscription
	leave      chan subscription
	unregister chan *Client
	broadcast  chan RoomMessage

	metrics *metrics.Metrics
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		members:    make(map[*Client]map[string]bool),
		join:       make(chan subscription),
		leave:      make(chan subscription),
		unregister: make(chan *Client),
		broadcast:  make(chan RoomMessage, 64),
	}
}

// WithMetrics attaches gateway metrics to the hub.
func (h *Hub) WithMetrics(m *metrics.Metrics) *Hub {
	h.metrics = m
	return h
}

// Run processes membership changes and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case sub := <-h.join:
			if h.rooms[sub.room] == nil {
				h.rooms[sub.room] = make(map[*Client]bool)
			}
			h.rooms[sub.room][sub.client] = true
			if h.members[sub.client] == nil {
				h.members[sub.client] = make(map[string]bool)
			}
			h.members[sub.client][sub.room] = true
			h.updateRoomGauge()

		case sub := <-h.leave:
			h.dropFromRoom(sub.client, sub.room)
			delete(h.members[sub.client], sub.room)
			h.updateRoomGauge()

		case client := <-h.unregister:
			for room := range h.members[client] {
				h.dropFromRoom(client, room)
			}
			delete(h.members, client)
			close(client.send)
			h.updateRoomGauge()

		case msg := <-h.broadcast:
			for client := range h.rooms[msg.Room] {
				select {
				case client.send <- msg.Data:
				default:
					// Slow consumer: drop the connection rather than
					// block the whole room.
					h.dropFromRoom(client, msg.Room)
					delete(h.members[client], msg.Room)
					if h.metrics != nil {
						h.metrics.DroppedSends.Inc()
					}
				}
			}
		}
	}
}

// Join subscribes a client to a room.
func (h *Hub) Join(c *Client, room string) {
	h.join <- subscription{client: c, room: room}
}

// Leave removes a client from one room.
func (h *Hub) Leave(c *Client, room string) {
	h.leave <- subscription{client: c, room: room}
}

// Unregister removes a client from every room and closes its send channel.
// Called exactly once, when the connection goes away.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Broadcast fans data out to the current members of room. Delivery is
// best-effort, at-most-once.
func (h *Hub) Broadcast(room string, data []byte) {
	h.broadcast <- RoomMessage{Room: room, Data: data}
}

func (h *Hub) dropFromRoom(c *Client, room string) {
	if clients, ok := h.rooms[room]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) updateRoomGauge() {
	if h.metrics != nil {
		h.metrics.ActiveRooms.Set(float64(len(h.rooms)))
	}
}
