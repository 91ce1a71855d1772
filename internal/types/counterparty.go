package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Counterparty is a known external contact the pipeline matches message
// senders against.
type Counterparty struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrganizationID    uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_counterparty_org_address" json:"organization_id"`
	Name              string         `gorm:"column:name;not null" json:"name"`
	Address           string         `gorm:"column:address;not null;uniqueIndex:idx_counterparty_org_address" json:"address"`
	Firm              string         `gorm:"column:firm" json:"firm"`
	LastInteractionAt *time.Time     `gorm:"column:last_interaction_at" json:"last_interaction_at,omitempty"`
	CreatedAt         time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Counterparty) TableName() string { return "counterparty" }
