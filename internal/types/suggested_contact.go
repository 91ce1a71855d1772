package types

import (
	"time"

	"github.com/google/uuid"
)

// SuggestedContact is derived from unmatched senders. Keyed by
// (organization_id, lowercased address); once dismissed it is never
// resurrected for that address.
type SuggestedContact struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrganizationID  uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_suggested_contact_org_address" json:"organization_id"`
	Address         string     `gorm:"column:address;not null;uniqueIndex:idx_suggested_contact_org_address" json:"address"`
	Name            string     `gorm:"column:name" json:"name"`
	Firm            *string    `gorm:"column:firm" json:"firm,omitempty"`
	SourceMessageID uuid.UUID  `gorm:"type:uuid" json:"source_message_id"`
	Dismissed       bool       `gorm:"column:dismissed;not null;default:false" json:"dismissed"`
	DismissedAt     *time.Time `gorm:"column:dismissed_at" json:"dismissed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (SuggestedContact) TableName() string { return "suggested_contact" }
