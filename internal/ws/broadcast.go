package ws

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/queue-api/pkg/messaging"
)

// Broadcaster is the fan-out fabric behind the gateway. The in-process
// implementation feeds the local hub directly; the broker-backed one routes
// through a pub/sub channel so every instance's hub sees the event. Engine
// and Directory never know which one is in play.
type Broadcaster interface {
	Broadcast(ctx context.Context, room string, payload []byte) error
	Close() error
}

type localBroadcaster struct {
	hub *Hub
}

// NewLocalBroadcaster returns the single-process fan-out.
func NewLocalBroadcaster(hub *Hub) Broadcaster {
	return &localBroadcaster{hub: hub}
}

func (b *localBroadcaster) Broadcast(ctx context.Context, room string, payload []byte) error {
	b.hub.Broadcast(room, payload)
	return nil
}

func (b *localBroadcaster) Close() error {
	return nil
}

// envelope carries a room broadcast across the broker.
type envelope struct {
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

type brokerBroadcaster struct {
	broker  messaging.Broker
	channel string
	cancel  context.CancelFunc
}

// NewBrokerBroadcaster publishes room events through broker and feeds events
// received on the channel into the local hub, so rooms span every instance
// subscribed to the same channel.
func NewBrokerBroadcaster(broker messaging.Broker, hub *Hub, channel string, logger zerolog.Logger) (Broadcaster, error) {
	ctx, cancel := context.WithCancel(context.Background())

	msgs, err := broker.Subscribe(ctx, channel)
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		for raw := range msgs {
			var env envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				logger.Warn().Err(err).Msg("dropping malformed broadcast envelope")
				continue
			}
			hub.Broadcast(env.Room, env.Payload)
		}
	}()

	return &brokerBroadcaster{
		broker:  broker,
		channel: channel,
		cancel:  cancel,
	}, nil
}

func (b *brokerBroadcaster) Broadcast(ctx context.Context, room string, payload []byte) error {
	return b.broker.Publish(ctx, b.channel, envelope{
		Room:    room,
		Payload: payload,
	})
}

func (b *brokerBroadcaster) Close() error {
	b.cancel()
	return b.broker.Close()
}
