package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RawMessage is the append-only ledger of ingested mailbox messages.
// (organization_id, provider_message_id) is the dedup key; rows are never
// mutated or deleted by the pipeline.
type RawMessage struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrganizationID    uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_raw_message_org_provider" json:"organization_id"`
	ProviderMessageID string         `gorm:"column:provider_message_id;not null;uniqueIndex:idx_raw_message_org_provider" json:"provider_message_id"`
	ThreadID          *string        `gorm:"column:thread_id;index" json:"thread_id,omitempty"`
	SenderAddress     string         `gorm:"column:sender_address;not null;index" json:"sender_address"`
	SenderName        string         `gorm:"column:sender_name" json:"sender_name"`
	Recipients        datatypes.JSON `gorm:"column:recipients;type:jsonb" json:"recipients"`
	CC                datatypes.JSON `gorm:"column:cc;type:jsonb" json:"cc"`
	Subject           string         `gorm:"column:subject" json:"subject"`
	BodyText          string         `gorm:"column:body_text;type:text" json:"body_text"`
	BodyHTML          string         `gorm:"column:body_html;type:text" json:"body_html"`
	ReceivedAt        time.Time      `gorm:"column:received_at;not null;index" json:"received_at"`
	HasAttachments    bool           `gorm:"column:has_attachments;not null;default:false" json:"has_attachments"`
	CreatedAt         time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (RawMessage) TableName() string { return "raw_message" }
