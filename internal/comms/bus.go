// Package comms routes cross-sector messages between manager agents. The
// comms document is the canonical mailbox: publish appends, subscribe
// reads without consuming, drain consumes. Direct messages are removed by
// their recipient's drain; broadcasts stay queued and are delivered once
// per recipient. An optional NATS connection fans published messages out
// to live subscribers; the durable mailbox works the same with or
// without it.
package comms

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/ayushsreejith06/sectorflow/internal/model"
	"github.com/ayushsreejith06/sectorflow/internal/store"
)

const subjectPrefix = "sectorflow.comms."

// Bus is the cross-sector message bus.
type Bus struct {
	store *store.Store
	nc    *nats.Conn
	log   zerolog.Logger
	now   func() time.Time
}

// NewBus creates a bus over the durable comms document only.
func NewBus(st *store.Store, log zerolog.Logger) *Bus {
	return &Bus{
		store: st,
		log:   log.With().Str("component", "comms").Logger(),
		now:   time.Now,
	}
}

// ConnectNATS attaches a live fan-out bridge. Reconnection is handled by
// the client; a dropped connection never blocks durable publishes.
func (b *Bus) ConnectNATS(url string) error {
	nc, err := nats.Connect(url,
		nats.Name("sectorflow-comms"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			b.log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			b.log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	b.nc = nc
	b.log.Info().Str("url", url).Msg("NATS bridge connected")
	return nil
}

// Close releases the NATS connection, if any.
func (b *Bus) Close() {
	if b.nc != nil {
		b.nc.Close()
		b.nc = nil
	}
}

// Publish appends a message to the durable mailbox and, when the bridge
// is up, fans it out on sectorflow.comms.<recipient>.
func (b *Bus) Publish(from, to, msgType string, payload json.RawMessage) (model.CrossSectorMessage, error) {
	if to == "" {
		to = model.BroadcastRecipient
	}
	msg := model.CrossSectorMessage{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Type:      msgType,
		Payload:   payload,
		Timestamp: b.now(),
	}

	_, err := store.Update(b.store, store.DocComms, func(cur []model.CrossSectorMessage) ([]model.CrossSectorMessage, error) {
		return append(cur, msg), nil
	})
	if err != nil {
		return model.CrossSectorMessage{}, err
	}

	if b.nc != nil {
		data, merr := json.Marshal(msg)
		if merr == nil {
			if perr := b.nc.Publish(subjectPrefix+to, data); perr != nil {
				b.log.Warn().Err(perr).Str("to", to).Msg("NATS publish failed")
			}
		}
	}

	b.log.Debug().Str("from", from).Str("to", to).Str("type", msgType).Msg("Message published")
	return msg, nil
}

// Subscribe returns the pending messages addressed to the recipient
// without consuming them: direct messages plus broadcasts the recipient
// has not drained yet.
func (b *Bus) Subscribe(recipient string) ([]model.CrossSectorMessage, error) {
	msgs, err := store.Comms(b.store)
	if err != nil {
		return nil, err
	}
	var out []model.CrossSectorMessage
	for _, m := range msgs {
		if !m.AddressedTo(recipient) {
			continue
		}
		if m.To == model.BroadcastRecipient && m.DeliveredToRecipient(recipient) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Drain consumes and returns the pending messages for the recipient.
// Direct messages are removed from the mailbox; broadcasts are marked
// delivered for this recipient and stay queued for the others.
func (b *Bus) Drain(recipient string) ([]model.CrossSectorMessage, error) {
	var drained []model.CrossSectorMessage
	_, err := store.Update(b.store, store.DocComms, func(cur []model.CrossSectorMessage) ([]model.CrossSectorMessage, error) {
		drained = drained[:0]
		remaining := cur[:0]
		for i := range cur {
			m := cur[i]
			switch {
			case m.To == recipient:
				drained = append(drained, m)
			case m.To == model.BroadcastRecipient && !m.DeliveredToRecipient(recipient):
				m.MarkDelivered(recipient)
				drained = append(drained, m)
				remaining = append(remaining, m)
			default:
				remaining = append(remaining, m)
			}
		}
		return remaining, nil
	})
	if err != nil {
		return nil, err
	}
	if len(drained) > 0 {
		b.log.Debug().Str("recipient", recipient).Int("count", len(drained)).Msg("Mailbox drained")
	}
	return drained, nil
}

// Listen registers a live handler for messages to the recipient. Requires
// the NATS bridge; durable delivery still goes through Drain.
func (b *Bus) Listen(recipient string, handler func(model.CrossSectorMessage)) (*nats.Subscription, error) {
	if b.nc == nil {
		return nil, fmt.Errorf("NATS bridge not connected")
	}
	return b.nc.Subscribe(subjectPrefix+recipient, func(natsMsg *nats.Msg) {
		var msg model.CrossSectorMessage
		if err := json.Unmarshal(natsMsg.Data, &msg); err != nil {
			b.log.Warn().Err(err).Msg("Dropping malformed live message")
			return
		}
		handler(msg)
	})
}
