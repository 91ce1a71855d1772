package repos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/types"
)

type SuggestedContactRepo interface {
	// Upsert creates or refreshes the suggestion for (org, lowercased
	// address). The dismissed flag is never touched by the upsert.
	Upsert(ctx context.Context, tx *gorm.DB, sc *types.SuggestedContact) error
	IsDismissed(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, address string) (bool, error)
	Dismiss(ctx context.Context, tx *gorm.DB, orgID, id uuid.UUID) error
	ListActive(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, limit int) ([]*types.SuggestedContact, error)
}

type suggestedContactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSuggestedContactRepo(db *gorm.DB, baseLog *logger.Logger) SuggestedContactRepo {
	return &suggestedContactRepo{
		db:  db,
		log: baseLog.With("repo", "SuggestedContactRepo"),
	}
}

func (r *suggestedContactRepo) Upsert(ctx context.Context, tx *gorm.DB, sc *types.SuggestedContact) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if sc == nil {
		return nil
	}
	sc.Address = strings.TrimSpace(strings.ToLower(sc.Address))
	if sc.Address == "" {
		return nil
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "organization_id"}, {Name: "address"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"name":              sc.Name,
				"firm":              sc.Firm,
				"source_message_id": sc.SourceMessageID,
				"updated_at":        now,
			}),
		}).
		Create(sc).Error
}

func (r *suggestedContactRepo) IsDismissed(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, address string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	address = strings.TrimSpace(strings.ToLower(address))
	if address == "" {
		return false, nil
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.SuggestedContact{}).
		Where("organization_id = ? AND address = ? AND dismissed = ?", orgID, address, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *suggestedContactRepo) Dismiss(ctx context.Context, tx *gorm.DB, orgID, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.SuggestedContact{}).
		Where("id = ? AND organization_id = ?", id, orgID).
		Updates(map[string]interface{}{
			"dismissed":    true,
			"dismissed_at": now,
			"updated_at":   now,
		}).Error
}

func (r *suggestedContactRepo) ListActive(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, limit int) ([]*types.SuggestedContact, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var out []*types.SuggestedContact
	err := transaction.WithContext(ctx).
		Where("organization_id = ? AND dismissed = ?", orgID, false).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
