package types

import (
	"time"

	"github.com/google/uuid"
)

// MailAccount is the connected mailbox for an organization. Holds the
// provider oauth credentials and the last persisted sync marker so a poll
// can resume incrementally instead of rescanning.
type MailAccount struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrganizationID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"organization_id"`
	Address        string     `gorm:"column:address;not null" json:"address"`
	AccessToken    string     `gorm:"column:access_token" json:"-"`
	RefreshToken   string     `gorm:"column:refresh_token" json:"-"`
	TokenExpiry    *time.Time `gorm:"column:token_expiry" json:"token_expiry,omitempty"`
	SyncMarker     string     `gorm:"column:sync_marker" json:"sync_marker"`
	SyncedAt       *time.Time `gorm:"column:synced_at" json:"synced_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (MailAccount) TableName() string { return "mail_account" }
