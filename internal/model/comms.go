package model

import (
	"encoding/json"
	"time"
)

// BroadcastRecipient addresses a cross-sector message to every manager.
const BroadcastRecipient = "broadcast"

// CrossSectorMessage is a payload routed between manager agents via the
// comms bus. Ordered append-only. Direct messages are consumed by their
// recipient's drain; broadcasts are delivered once per recipient, tracked
// in DeliveredTo.
type CrossSectorMessage struct {
	ID          string          `json:"id"`
	From        string          `json:"from"`
	To          string          `json:"to"` // manager id or "broadcast"
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Timestamp   time.Time       `json:"timestamp"`
	DeliveredTo []string        `json:"deliveredTo,omitempty"` // broadcast recipients already drained
}

// AddressedTo reports whether the message should be visible to recipient.
func (m *CrossSectorMessage) AddressedTo(recipient string) bool {
	return m.To == recipient || m.To == BroadcastRecipient
}

// DeliveredToRecipient reports whether a broadcast was already drained by
// recipient.
func (m *CrossSectorMessage) DeliveredToRecipient(recipient string) bool {
	for _, r := range m.DeliveredTo {
		if r == recipient {
			return true
		}
	}
	return false
}

// MarkDelivered records that recipient has drained this broadcast.
func (m *CrossSectorMessage) MarkDelivered(recipient string) {
	if !m.DeliveredToRecipient(recipient) {
		m.DeliveredTo = append(m.DeliveredTo, recipient)
	}
}
