package repos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/types"
)

type CounterpartyRepo interface {
	ListByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, limit int) ([]*types.Counterparty, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Counterparty, error)
	FindByAddress(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, address string) (*types.Counterparty, error)
	TouchLastInteraction(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error
}

type counterpartyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCounterpartyRepo(db *gorm.DB, baseLog *logger.Logger) CounterpartyRepo {
	return &counterpartyRepo{
		db:  db,
		log: baseLog.With("repo", "CounterpartyRepo"),
	}
}

func (r *counterpartyRepo) ListByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, limit int) ([]*types.Counterparty, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 500
	}
	var out []*types.Counterparty
	err := transaction.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *counterpartyRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Counterparty, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var cp types.Counterparty
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&cp).Error
	if err != nil {
		return nil, err
	}
	if cp.ID == uuid.Nil {
		return nil, nil
	}
	return &cp, nil
}

func (r *counterpartyRepo) FindByAddress(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, address string) (*types.Counterparty, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	address = strings.TrimSpace(strings.ToLower(address))
	if address == "" {
		return nil, nil
	}
	var cp types.Counterparty
	err := transaction.WithContext(ctx).
		Where("organization_id = ? AND LOWER(address) = ?", orgID, address).
		Limit(1).
		Find(&cp).Error
	if err != nil {
		return nil, err
	}
	if cp.ID == uuid.Nil {
		return nil, nil
	}
	return &cp, nil
}

func (r *counterpartyRepo) TouchLastInteraction(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	// Only moves the timestamp forward; a backfill replaying old mail must
	// not rewind a fresher interaction.
	return transaction.WithContext(ctx).
		Model(&types.Counterparty{}).
		Where("id = ? AND (last_interaction_at IS NULL OR last_interaction_at < ?)", id, at).
		Updates(map[string]interface{}{
			"last_interaction_at": at,
			"updated_at":          time.Now(),
		}).Error
}
