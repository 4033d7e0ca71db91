package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReportRequestMessage asks the mail worker to email a user their report.
// Expenses are loaded when the message is processed, not when it is queued.
type ReportRequestMessage struct {
	UserID      int64     `json:"user_id"`
	RequestedAt time.Time `json:"requested_at"`
	RequestID   string    `json:"request_id,omitempty"`
}

func NewReportRequestMessage(userID int64, requestID string) *ReportRequestMessage {
	return &ReportRequestMessage{
		UserID:      userID,
		RequestedAt: time.Now().UTC(),
		RequestID:   requestID,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportRequestMessageFromJSON decodes a message. A missing user id is an error.
func ReportRequestMessageFromJSON(data []byte) (*ReportRequestMessage, error) {
	var msg ReportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID <= 0 {
		return nil, fmt.Errorf("invalid user id %d", msg.UserID)
	}
	return &msg, nil
}
