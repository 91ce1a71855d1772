package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/types"
)

type ParseRecordRepo interface {
	// UpsertProcessing creates-or-resets the record for a message id into
	// processing status. Re-running extraction on the same message overwrites
	// the previous attempt.
	UpsertProcessing(ctx context.Context, tx *gorm.DB, orgID, messageID uuid.UUID, modelVersion string) (*types.ParseRecord, error)
	Finalize(ctx context.Context, tx *gorm.DB, rec *types.ParseRecord) error
	MarkFailed(ctx context.Context, tx *gorm.DB, messageID uuid.UUID, errMsg string) error
	GetByMessageID(ctx context.Context, tx *gorm.DB, messageID uuid.UUID) (*types.ParseRecord, error)
	ListByStatus(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, status string, limit int) ([]*types.ParseRecord, error)
	Resolve(ctx context.Context, tx *gorm.DB, messageID uuid.UUID, counterpartyID, dealID *uuid.UUID) error
}

type parseRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewParseRecordRepo(db *gorm.DB, baseLog *logger.Logger) ParseRecordRepo {
	return &parseRecordRepo{
		db:  db,
		log: baseLog.With("repo", "ParseRecordRepo"),
	}
}

func (r *parseRecordRepo) UpsertProcessing(ctx context.Context, tx *gorm.DB, orgID, messageID uuid.UUID, modelVersion string) (*types.ParseRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	rec := &types.ParseRecord{
		MessageID:      messageID,
		OrganizationID: orgID,
		Status:         types.ParseStatusProcessing,
		ModelVersion:   modelVersion,
		UpdatedAt:      now,
	}
	err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "message_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"status":        types.ParseStatusProcessing,
				"error_message": "",
				"model_version": modelVersion,
				"updated_at":    now,
			}),
		}).
		Create(rec).Error
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *parseRecordRepo) Finalize(ctx context.Context, tx *gorm.DB, rec *types.ParseRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if rec == nil || rec.MessageID == uuid.Nil {
		return nil
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.ParseRecord{}).
		Where("message_id = ?", rec.MessageID).
		Updates(map[string]interface{}{
			"status":          rec.Status,
			"counterparty_id": rec.CounterpartyID,
			"deal_id":         rec.DealID,
			"intent":          rec.Intent,
			"commitment":      rec.Commitment,
			"sentiment":       rec.Sentiment,
			"questions":       rec.Questions,
			"confidence":      rec.Confidence,
			"reasoning":       rec.Reasoning,
			"error_message":   "",
			"model_version":   rec.ModelVersion,
			"parsed_at":       rec.ParsedAt,
			"updated_at":      now,
		}).Error
}

func (r *parseRecordRepo) MarkFailed(ctx context.Context, tx *gorm.DB, messageID uuid.UUID, errMsg string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if messageID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.ParseRecord{}).
		Where("message_id = ?", messageID).
		Updates(map[string]interface{}{
			"status":        types.ParseStatusFailed,
			"error_message": errMsg,
			"updated_at":    time.Now(),
		}).Error
}

func (r *parseRecordRepo) GetByMessageID(ctx context.Context, tx *gorm.DB, messageID uuid.UUID) (*types.ParseRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if messageID == uuid.Nil {
		return nil, nil
	}
	var rec types.ParseRecord
	err := transaction.WithContext(ctx).
		Where("message_id = ?", messageID).
		Limit(1).
		Find(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == uuid.Nil {
		return nil, nil
	}
	return &rec, nil
}

func (r *parseRecordRepo) ListByStatus(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, status string, limit int) ([]*types.ParseRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var out []*types.ParseRecord
	err := transaction.WithContext(ctx).
		Where("organization_id = ? AND status = ?", orgID, status).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *parseRecordRepo) Resolve(ctx context.Context, tx *gorm.DB, messageID uuid.UUID, counterpartyID, dealID *uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if messageID == uuid.Nil {
		return nil
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.ParseRecord{}).
		Where("message_id = ? AND status = ?", messageID, types.ParseStatusManualReview).
		Updates(map[string]interface{}{
			"status":          types.ParseStatusSuccess,
			"counterparty_id": counterpartyID,
			"deal_id":         dealID,
			"parsed_at":       now,
			"updated_at":      now,
		}).Error
}
