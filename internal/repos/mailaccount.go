package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/types"
)

type MailAccountRepo interface {
	GetByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) (*types.MailAccount, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.MailAccount, error)
	// UpdateToken persists a refreshed provider token. Guarded by the old
	// expiry so two racing invocations don't clobber a newer token.
	UpdateToken(ctx context.Context, tx *gorm.DB, id uuid.UUID, accessToken, refreshToken string, expiry time.Time, oldExpiry *time.Time) error
	UpdateSyncMarker(ctx context.Context, tx *gorm.DB, id uuid.UUID, marker string) error
}

type mailAccountRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMailAccountRepo(db *gorm.DB, baseLog *logger.Logger) MailAccountRepo {
	return &mailAccountRepo{
		db:  db,
		log: baseLog.With("repo", "MailAccountRepo"),
	}
}

func (r *mailAccountRepo) GetByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) (*types.MailAccount, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if orgID == uuid.Nil {
		return nil, nil
	}
	var acct types.MailAccount
	err := transaction.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Limit(1).
		Find(&acct).Error
	if err != nil {
		return nil, err
	}
	if acct.ID == uuid.Nil {
		return nil, nil
	}
	return &acct, nil
}

func (r *mailAccountRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.MailAccount, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.MailAccount
	if err := transaction.WithContext(ctx).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mailAccountRepo) UpdateToken(ctx context.Context, tx *gorm.DB, id uuid.UUID, accessToken, refreshToken string, expiry time.Time, oldExpiry *time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	q := transaction.WithContext(ctx).
		Model(&types.MailAccount{}).
		Where("id = ?", id)
	if oldExpiry != nil {
		q = q.Where("token_expiry IS NULL OR token_expiry = ? OR token_expiry < ?", *oldExpiry, expiry)
	}
	return q.Updates(map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_expiry":  expiry,
		"updated_at":    time.Now(),
	}).Error
}

func (r *mailAccountRepo) UpdateSyncMarker(ctx context.Context, tx *gorm.DB, id uuid.UUID, marker string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || marker == "" {
		return nil
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.MailAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sync_marker": marker,
			"synced_at":   now,
			"updated_at":  now,
		}).Error
}
