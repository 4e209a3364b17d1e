package family

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

const (
	AccessLimited   = "limited"
	AccessFull      = "full"
	AccessEmergency = "emergency"
)

var validAccessLevels = map[string]bool{
	AccessLimited:   true,
	AccessFull:      true,
	AccessEmergency: true,
}

// Request is a pending invitation from one account to another. Requests
// are never deleted; status moves pending -> accepted|rejected and stops.
type Request struct {
	ID           uuid.UUID `json:"id" db:"id"`
	FromID       uuid.UUID `json:"from_id" db:"from_id"`
	FromEmail    string    `json:"from_email" db:"from_email"`
	FromName     string    `json:"from_name" db:"from_name"`
	ToID         uuid.UUID `json:"to_id" db:"to_id"`
	ToEmail      string    `json:"to_email" db:"to_email"`
	ToName       string    `json:"to_name" db:"to_name"`
	Relationship string    `json:"relationship" db:"relationship"`
	Status       string    `json:"status" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Member is one direction of a family link. Accepting a request writes
// two rows, one per owner, so each side reads its own labeled view.
type Member struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	OwnerID            uuid.UUID `json:"owner_id" db:"owner_id"`
	MemberID           uuid.UUID `json:"member_id" db:"member_id"`
	Name               string    `json:"name" db:"name"`
	Email              string    `json:"email" db:"email"`
	Relationship       string    `json:"relationship" db:"relationship"`
	AccessLevel        string    `json:"access_level" db:"access_level"`
	IsEmergencyContact bool      `json:"is_emergency_contact" db:"is_emergency_contact"`
	AddedAt            time.Time `json:"added_at" db:"added_at"`
}

// FallbackRelationship labels the other side of a link whose
// relationship has no known inverse.
const FallbackRelationship = "Family Member"

var inverseRelationships = map[string]string{
	"Parent":      "Child",
	"Child":       "Parent",
	"Grandparent": "Grandchild",
	"Grandchild":  "Grandparent",
	"Sibling":     "Sibling",
	"Spouse":      "Spouse",
	"Cousin":      "Cousin",
	"Uncle":       "Niece/Nephew",
	"Aunt":        "Niece/Nephew",
	"Guardian":    "Ward",
	"Ward":        "Guardian",
	"Friend":      "Friend",
}

// InverseRelationship returns the reciprocal label seen from the other
// side of a link (Parent -> Child, Uncle -> Niece/Nephew). Unrecognized
// labels fall back to "Family Member".
func InverseRelationship(relationship string) string {
	if inverse, ok := inverseRelationships[relationship]; ok {
		return inverse
	}
	return FallbackRelationship
}
