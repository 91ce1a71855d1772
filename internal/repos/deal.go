package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/types"
)

type DealRepo interface {
	ListOpenByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, limit int) ([]*types.Deal, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Deal, error)
}

type dealRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDealRepo(db *gorm.DB, baseLog *logger.Logger) DealRepo {
	return &dealRepo{
		db:  db,
		log: baseLog.With("repo", "DealRepo"),
	}
}

func (r *dealRepo) ListOpenByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, limit int) ([]*types.Deal, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var out []*types.Deal
	err := transaction.WithContext(ctx).
		Where("organization_id = ? AND status = ?", orgID, types.DealStatusOpen).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *dealRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Deal, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var d types.Deal
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&d).Error
	if err != nil {
		return nil, err
	}
	if d.ID == uuid.Nil {
		return nil, nil
	}
	return &d, nil
}
