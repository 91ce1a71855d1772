package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DealStatusOpen   = "open"
	DealStatusClosed = "closed"
	DealStatusLost   = "lost"
)

// Deal is an open opportunity the pipeline matches message content against.
type Deal struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrganizationID uuid.UUID      `gorm:"type:uuid;not null;index" json:"organization_id"`
	Name           string         `gorm:"column:name;not null" json:"name"`
	Company        string         `gorm:"column:company" json:"company"`
	Status         string         `gorm:"column:status;not null;default:'open';index" json:"status"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Deal) TableName() string { return "deal" }
