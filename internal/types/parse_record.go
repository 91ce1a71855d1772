package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ParseStatusPending      = "pending"
	ParseStatusProcessing   = "processing"
	ParseStatusSuccess      = "success"
	ParseStatusFailed       = "failed"
	ParseStatusManualReview = "manual_review"
)

const (
	IntentCommitment  = "commitment"
	IntentQuestion    = "question"
	IntentUpdate      = "update"
	IntentDecline     = "decline"
	IntentIntroDeck   = "intro_deck"
	IntentScheduling  = "scheduling"
	IntentWireDetails = "wire_details"
	IntentOther       = "other"
)

const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// ParseRecord is one-to-one with a RawMessage and is the unit of
// classification idempotency: a message with a success record is never
// re-selected for parsing.
type ParseRecord struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	MessageID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"message_id"`
	Message        *RawMessage    `gorm:"constraint:OnDelete:CASCADE;foreignKey:MessageID;references:ID" json:"message,omitempty"`
	OrganizationID uuid.UUID      `gorm:"type:uuid;not null;index" json:"organization_id"`
	Status         string         `gorm:"column:status;not null;default:'pending';index" json:"status"`
	CounterpartyID *uuid.UUID     `gorm:"type:uuid;index" json:"counterparty_id,omitempty"`
	DealID         *uuid.UUID     `gorm:"type:uuid;index" json:"deal_id,omitempty"`
	Intent         string         `gorm:"column:intent" json:"intent"`
	Commitment     *float64       `gorm:"column:commitment" json:"commitment,omitempty"`
	Sentiment      string         `gorm:"column:sentiment" json:"sentiment"`
	Questions      datatypes.JSON `gorm:"column:questions;type:jsonb" json:"questions"`
	Confidence     datatypes.JSON `gorm:"column:confidence;type:jsonb" json:"confidence"`
	Reasoning      string         `gorm:"column:reasoning;type:text" json:"reasoning"`
	ErrorMessage   string         `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	ModelVersion   string         `gorm:"column:model_version" json:"model_version"`
	ParsedAt       *time.Time     `gorm:"column:parsed_at" json:"parsed_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ParseRecord) TableName() string { return "parse_record" }
