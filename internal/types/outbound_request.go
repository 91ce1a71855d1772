package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	OutboundStatusPending  = "pending"
	OutboundStatusSent     = "sent"
	OutboundStatusAnswered = "answered"
)

// OutboundRequest records a message the system sent expecting a reply
// (e.g. a periodic update request). The thread answer correlator moves it
// to answered when the target replies on the same thread.
type OutboundRequest struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrganizationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"organization_id"`
	CounterpartyID *uuid.UUID `gorm:"type:uuid;index" json:"counterparty_id,omitempty"`
	ThreadID       string     `gorm:"column:thread_id;index" json:"thread_id"`
	TargetAddress  string     `gorm:"column:target_address;not null" json:"target_address"`
	Subject        string     `gorm:"column:subject" json:"subject"`
	Status         string     `gorm:"column:status;not null;default:'pending';index" json:"status"`
	SentAt         *time.Time `gorm:"column:sent_at" json:"sent_at,omitempty"`
	AnsweredAt     *time.Time `gorm:"column:answered_at" json:"answered_at,omitempty"`
	ReplyMessageID *uuid.UUID `gorm:"type:uuid" json:"reply_message_id,omitempty"`
	ReplyBody      string     `gorm:"column:reply_body;type:text" json:"reply_body,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (OutboundRequest) TableName() string { return "outbound_request" }
