package realtime

import (
	"context"

	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

// Relay publishes a message to every instance; the local hub receives it back
// through the relay's forwarder.
type Relay interface {
	Publish(ctx context.Context, msg SSEMessage) error
}

// Emitter delivers player events to SSE clients, through a relay when one is
// configured and straight to the local hub otherwise.
type Emitter struct {
	log   *logger.Logger
	hub   *SSEHub
	relay Relay
}

func NewEmitter(log *logger.Logger, hub *SSEHub, relay Relay) *Emitter {
	return &Emitter{log: log.With("component", "SSEEmitter"), hub: hub, relay: relay}
}

func (e *Emitter) Emit(ctx context.Context, msg SSEMessage) {
	if e == nil {
		return
	}
	if e.relay != nil {
		err := e.relay.Publish(ctx, msg)
		if err == nil {
			return
		}
		e.log.Warn("SSE relay publish failed, delivering locally", "channel", msg.Channel, "error", err)
	}
	if e.hub != nil {
		e.hub.Broadcast(msg)
	}
}
