package amqp

import (
	"encoding/json"
	"time"

	"condomini/internal/core"
)

// VisitMessage carries one page visit from the web process to the visit worker.
type VisitMessage struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"session_id"`
	UserAgent   string            `json:"user_agent,omitempty"`
	Referrer    string            `json:"referrer,omitempty"`
	Origin      string            `json:"origin,omitempty"`
	Language    string            `json:"language,omitempty"`
	QueryParams map[string]string `json:"query_params,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// NewVisitMessage copies a visit into its wire form
func NewVisitMessage(v core.Visit) *VisitMessage {
	return &VisitMessage{
		ID:          v.ID,
		SessionID:   v.SessionID,
		UserAgent:   v.UserAgent,
		Referrer:    v.Referrer,
		Origin:      v.Origin,
		Language:    v.Language,
		QueryParams: v.QueryParams,
		Timestamp:   v.Timestamp.UTC(),
	}
}

// Visit converts the message back into the domain type
func (m *VisitMessage) Visit() core.Visit {
	return core.Visit{
		ID:          m.ID,
		SessionID:   m.SessionID,
		UserAgent:   m.UserAgent,
		Referrer:    m.Referrer,
		Origin:      m.Origin,
		Language:    m.Language,
		QueryParams: m.QueryParams,
		Timestamp:   m.Timestamp,
	}
}

// ToJSON converts the message to JSON bytes
func (m *VisitMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// VisitMessageFromJSON decodes a message body
func VisitMessageFromJSON(data []byte) (*VisitMessage, error) {
	var msg VisitMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
