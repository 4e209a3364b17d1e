package notification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypeFamilyRequest     = "family_request"
	TypeFamilyAccepted    = "family_accepted"
	TypeFamilyRejected    = "family_rejected"
	TypeChatMessage       = "chat_message"
	TypeEmergencyAlert    = "emergency_alert"
	TypeConnectionRequest = "connection_request"
	TypeSystem            = "system"
)

var validTypes = map[string]bool{
	TypeFamilyRequest:     true,
	TypeFamilyAccepted:    true,
	TypeFamilyRejected:    true,
	TypeChatMessage:       true,
	TypeEmergencyAlert:    true,
	TypeConnectionRequest: true,
	TypeSystem:            true,
}

const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Notification is an append-only inbox entry. Read and Deleted are
// flags; rows are never removed.
type Notification struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	RecipientID uuid.UUID       `json:"recipient_id" db:"recipient_id"`
	SenderID    *uuid.UUID      `json:"sender_id,omitempty" db:"sender_id"`
	Type        string          `json:"type" db:"type"`
	Title       string          `json:"title" db:"title"`
	Message     string          `json:"message" db:"message"`
	Data        json.RawMessage `json:"data,omitempty" db:"data"`
	Priority    string          `json:"priority" db:"priority"`
	Read        bool            `json:"read" db:"read"`
	Deleted     bool            `json:"deleted" db:"deleted"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}
