package location

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeMedical  = "medical"
	TypeAccident = "accident"
	TypeFire     = "fire"
	TypePolice   = "police"
	TypeOther    = "other"
)

var validEmergencyTypes = map[string]bool{
	TypeMedical:  true,
	TypeAccident: true,
	TypeFire:     true,
	TypePolice:   true,
	TypeOther:    true,
}

const (
	StatusActive   = "active"
	StatusResolved = "resolved"
	StatusExpired  = "expired"
)

// ShareTTL bounds how long an emergency share stays visible.
const ShareTTL = 24 * time.Hour

// EmergencyShare is one broadcast of a user's location to their family
// network.
type EmergencyShare struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	Lat           float64   `json:"lat" db:"lat"`
	Lng           float64   `json:"lng" db:"lng"`
	Accuracy      float64   `json:"accuracy" db:"accuracy"`
	Address       string    `json:"address" db:"address"`
	EmergencyType string    `json:"emergency_type" db:"emergency_type"`
	Message       string    `json:"message" db:"message"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	Status        string    `json:"status" db:"status"`
	SharedAt      time.Time `json:"shared_at" db:"shared_at"`
	ExpiresAt     time.Time `json:"expires_at" db:"expires_at"`
}
