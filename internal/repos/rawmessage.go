package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/types"
)

type RawMessageRepo interface {
	// InsertIgnoreDuplicate inserts the message unless one with the same
	// (organization_id, provider_message_id) already exists. Returns whether
	// a new row was created.
	InsertIgnoreDuplicate(ctx context.Context, tx *gorm.DB, msg *types.RawMessage) (bool, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.RawMessage, error)
	FilterNewProviderIDs(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, providerIDs []string) ([]string, error)
	CountUnparsed(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) (int64, error)
	ListUnparsed(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, limit int) ([]*types.RawMessage, error)
	ListRecent(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, limit int) ([]*types.RawMessage, error)
}

type rawMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRawMessageRepo(db *gorm.DB, baseLog *logger.Logger) RawMessageRepo {
	return &rawMessageRepo{
		db:  db,
		log: baseLog.With("repo", "RawMessageRepo"),
	}
}

func (r *rawMessageRepo) InsertIgnoreDuplicate(ctx context.Context, tx *gorm.DB, msg *types.RawMessage) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if msg == nil {
		return false, nil
	}
	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "organization_id"}, {Name: "provider_message_id"}},
			DoNothing: true,
		}).
		Create(msg)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *rawMessageRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.RawMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var msg types.RawMessage
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&msg).Error
	if err != nil {
		return nil, err
	}
	if msg.ID == uuid.Nil {
		return nil, nil
	}
	return &msg, nil
}

func (r *rawMessageRepo) FilterNewProviderIDs(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, providerIDs []string) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(providerIDs) == 0 {
		return nil, nil
	}
	var existing []string
	err := transaction.WithContext(ctx).
		Model(&types.RawMessage{}).
		Where("organization_id = ? AND provider_message_id IN ?", orgID, providerIDs).
		Pluck("provider_message_id", &existing).Error
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}
	out := make([]string, 0, len(providerIDs))
	for _, id := range providerIDs {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// unparsedCondition selects messages with no success-status parse record.
// Failed and manual_review records are re-selected on purpose so a retry can
// pick them up; success is the only terminal skip.
const unparsedCondition = `
	raw_message.organization_id = ?
	AND NOT EXISTS (
		SELECT 1 FROM parse_record
		WHERE parse_record.message_id = raw_message.id
		AND parse_record.status = ?
	)
`

func (r *rawMessageRepo) CountUnparsed(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.RawMessage{}).
		Where(unparsedCondition, orgID, types.ParseStatusSuccess).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *rawMessageRepo) ListUnparsed(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, limit int) ([]*types.RawMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 10
	}
	var out []*types.RawMessage
	// Never-attempted messages sort ahead of ones with a failed or
	// manual_review record, so a chunked run drains fresh mail before
	// revisiting earlier attempts.
	err := transaction.WithContext(ctx).
		Where(unparsedCondition, orgID, types.ParseStatusSuccess).
		Order("(SELECT COUNT(*) FROM parse_record WHERE parse_record.message_id = raw_message.id) ASC, received_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *rawMessageRepo) ListRecent(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, limit int) ([]*types.RawMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var out []*types.RawMessage
	err := transaction.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("received_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
