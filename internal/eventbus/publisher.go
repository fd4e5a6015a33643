package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/relaysys/portkern/internal/ipc/port"
	"go.uber.org/zap"
)

// Channel is the Redis pub/sub channel lifecycle events are published on.
const Channel = "portkern:port-events"

// payload is the wire shape of a published lifecycle event.
type payload struct {
	Event      string `json:"event"`
	ID         int32  `json:"id"`
	Owner      int64  `json:"owner"`
	Name       string `json:"name"`
	Capacity   int    `json:"capacity"`
	QueueCount int    `json:"queue_count"`
	TotalCount uint64 `json:"total_count"`
	Closed     bool   `json:"closed"`
}

// Publisher implements port.EventPublisher against Redis. It is
// deliberately best-effort: a publish failure is logged and swallowed so
// the core port table never depends on Redis being reachable.
type Publisher struct {
	log *zap.Logger
	rc  *client
}

// New connects a Publisher to addr/db. If addr is empty, use NoOp instead.
func New(log *zap.Logger, addr string, db int) *Publisher {
	log = log.Named("eventbus")
	return &Publisher{log: log, rc: newClient(addr, db, log)}
}

// Publish implements port.EventPublisher.
func (p *Publisher) Publish(ctx context.Context, event string, info port.Info) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	b, err := json.Marshal(payload{
		Event:      event,
		ID:         int32(info.ID),
		Owner:      info.Owner,
		Name:       info.Name,
		Capacity:   info.Capacity,
		QueueCount: info.QueueCount,
		TotalCount: info.TotalCount,
		Closed:     info.Closed,
	})
	if err != nil {
		p.log.Warn("event marshal failed", zap.Error(err), zap.String("event", event))
		return
	}

	if err := p.rc.Publish(ctx, Channel, b).Err(); err != nil {
		p.log.Warn("event publish failed", zap.Error(err), zap.String("event", event))
	}
}

// Close releases the underlying Redis connection.
func (p *Publisher) Close() error {
	return p.rc.Close()
}

// NoOp is an EventPublisher that discards every event, used when no Redis
// address is configured so the core never depends on Redis being up.
type NoOp struct{}

func (NoOp) Publish(context.Context, string, port.Info) {}
