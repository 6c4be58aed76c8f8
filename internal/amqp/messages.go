package amqp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"finsight/internal/core"
)

// InsightRequestMessage asks the worker to (re)generate the stored insight
// for one owner and month. The worker reads the transactions itself.
type InsightRequestMessage struct {
	RequestID string    `json:"requestId"`
	Owner     string    `json:"owner"`
	Month     string    `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

func NewInsightRequestMessage(owner, month string) *InsightRequestMessage {
	return &InsightRequestMessage{
		RequestID: uuid.NewString(),
		Owner:     owner,
		Month:     month,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InsightRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate rejects messages the worker can never process.
func (m *InsightRequestMessage) Validate() error {
	if strings.TrimSpace(m.Owner) == "" {
		return core.NewValidationError("owner", "owner is required")
	}
	if _, err := core.ParseMonth(m.Month); err != nil {
		return err
	}
	return nil
}

// InsightRequestMessageFromJSON decodes and validates a delivery body.
func InsightRequestMessageFromJSON(data []byte) (*InsightRequestMessage, error) {
	var msg InsightRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode insight request: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
