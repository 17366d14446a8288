package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/staticforge/staticforge/internal/store"
)

// Publisher fans events out on the in-process Bus and, for catchup
// support, persists each one to the store's events table. No pg_notify
// fan-out is needed since the bus already lives in this process.
type Publisher struct {
	bus   *Bus
	store *store.Store
}

// NewPublisher wires a Bus to a Store.
func NewPublisher(bus *Bus, st *store.Store) *Publisher {
	return &Publisher{bus: bus, store: st}
}

// Publish persists and fans out one event on topic.
func (p *Publisher) Publish(ctx context.Context, topic string, typ Type, payload any) {
	p.bus.Publish(topic, typ, payload)
	if p.store == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("null")
	}
	_, _ = p.store.DB().ExecContext(ctx, `
		INSERT INTO events (topic, event_type, payload) VALUES ($1, $2, $3)`, topic, string(typ), raw)
}

// Catchup returns events on topic with id > sinceID, oldest first, for
// a client reconnecting mid-build. Capped at 200 rows; callers should
// treat a full page as a signal that some events were skipped.
func (p *Publisher) Catchup(ctx context.Context, topic string, sinceID int64) ([]CatchupEvent, error) {
	const catchupLimit = 200
	rows, err := p.store.DB().QueryContext(ctx, `
		SELECT id, event_type, payload, created_at FROM events
		WHERE topic = $1 AND id > $2 ORDER BY id ASC LIMIT $3`, topic, sinceID, catchupLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CatchupEvent
	for rows.Next() {
		var ev CatchupEvent
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CatchupEvent is a persisted event row replayed to a reconnecting client.
type CatchupEvent struct {
	ID        int64
	Type      string
	Payload   json.RawMessage
	CreatedAt time.Time
}
