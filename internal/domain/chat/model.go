package chat

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversation is the single document for an unordered pair of
// accounts. Participants are stored sorted so the pair maps to exactly
// one row.
type Conversation struct {
	ID                  string     `json:"id" db:"id"`
	ParticipantA        uuid.UUID  `json:"participant_a" db:"participant_a"`
	ParticipantB        uuid.UUID  `json:"participant_b" db:"participant_b"`
	LastMessageText     *string    `json:"last_message_text,omitempty" db:"last_message_text"`
	LastMessageSenderID *uuid.UUID `json:"last_message_sender_id,omitempty" db:"last_message_sender_id"`
	LastMessageAt       *time.Time `json:"last_message_at,omitempty" db:"last_message_at"`
	UnreadA             int        `json:"unread_a" db:"unread_a"`
	UnreadB             int        `json:"unread_b" db:"unread_b"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

func (c *Conversation) HasParticipant(id uuid.UUID) bool {
	return c.ParticipantA == id || c.ParticipantB == id
}

// Other returns the participant opposite id.
func (c *Conversation) Other(id uuid.UUID) uuid.UUID {
	if c.ParticipantA == id {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// UnreadFor returns the unread counter belonging to id.
func (c *Conversation) UnreadFor(id uuid.UUID) int {
	if c.ParticipantA == id {
		return c.UnreadA
	}
	return c.UnreadB
}

type Message struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	ConversationID string      `json:"conversation_id" db:"conversation_id"`
	SenderID       uuid.UUID   `json:"sender_id" db:"sender_id"`
	Text           string      `json:"text" db:"text"`
	SentAt         time.Time   `json:"sent_at" db:"sent_at"`
	ReadBy         []uuid.UUID `json:"read_by" db:"read_by"`
	IsDeleted      bool        `json:"is_deleted" db:"is_deleted"`
	DeletedFor     []uuid.UUID `json:"-" db:"deleted_for"`
}

// ConversationIDFor derives the identity of the conversation between
// two accounts. It is order-independent: both call orders yield the
// same ID.
func ConversationIDFor(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// SortParticipants returns the pair in the order ConversationIDFor
// joins them.
func SortParticipants(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}
