// Package bus relays SSE messages between instances so a player event reaches
// clients connected to any replica.
package bus

import (
	"context"

	"github.com/yungbote/neurobridge-player/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
