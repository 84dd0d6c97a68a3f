package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds carried on the ledger stream.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// LedgerEventMessage tells the summary worker which user-months need a
// refresh after a ledger mutation. It carries dates rather than the full
// transaction; the worker recomputes from the database.
type LedgerEventMessage struct {
	Kind      string    `json:"kind"`
	UserID    int64     `json:"user_id"`
	Dates     []string  `json:"dates"` // YYYY-MM-DD, one per affected month
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEventMessage(kind string, userID int64, dates ...string) *LedgerEventMessage {
	return &LedgerEventMessage{
		Kind:      kind,
		UserID:    userID,
		Dates:     dates,
		Timestamp: time.Now(),
	}
}

func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
