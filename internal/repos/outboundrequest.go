package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/types"
)

type OutboundRequestRepo interface {
	Create(ctx context.Context, tx *gorm.DB, req *types.OutboundRequest) (*types.OutboundRequest, error)
	MarkSent(ctx context.Context, tx *gorm.DB, id uuid.UUID, threadID string, at time.Time) error
	ListSentByThreadIDs(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, threadIDs []string) ([]*types.OutboundRequest, error)
	MarkAnswered(ctx context.Context, tx *gorm.DB, id uuid.UUID, replyMessageID uuid.UUID, replyBody string, at time.Time) error
	ListByStatus(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, status string, limit int) ([]*types.OutboundRequest, error)
}

type outboundRequestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOutboundRequestRepo(db *gorm.DB, baseLog *logger.Logger) OutboundRequestRepo {
	return &outboundRequestRepo{
		db:  db,
		log: baseLog.With("repo", "OutboundRequestRepo"),
	}
}

func (r *outboundRequestRepo) Create(ctx context.Context, tx *gorm.DB, req *types.OutboundRequest) (*types.OutboundRequest, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if req == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}

func (r *outboundRequestRepo) MarkSent(ctx context.Context, tx *gorm.DB, id uuid.UUID, threadID string, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.OutboundRequest{}).
		Where("id = ? AND status = ?", id, types.OutboundStatusPending).
		Updates(map[string]interface{}{
			"status":     types.OutboundStatusSent,
			"thread_id":  threadID,
			"sent_at":    at,
			"updated_at": time.Now(),
		}).Error
}

func (r *outboundRequestRepo) ListSentByThreadIDs(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, threadIDs []string) ([]*types.OutboundRequest, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(threadIDs) == 0 {
		return nil, nil
	}
	var out []*types.OutboundRequest
	err := transaction.WithContext(ctx).
		Where("organization_id = ? AND status = ? AND thread_id IN ?", orgID, types.OutboundStatusSent, threadIDs).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *outboundRequestRepo) MarkAnswered(ctx context.Context, tx *gorm.DB, id uuid.UUID, replyMessageID uuid.UUID, replyBody string, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.OutboundRequest{}).
		Where("id = ? AND status = ?", id, types.OutboundStatusSent).
		Updates(map[string]interface{}{
			"status":           types.OutboundStatusAnswered,
			"reply_message_id": replyMessageID,
			"reply_body":       replyBody,
			"answered_at":      at,
			"updated_at":       time.Now(),
		}).Error
}

func (r *outboundRequestRepo) ListByStatus(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, status string, limit int) ([]*types.OutboundRequest, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var out []*types.OutboundRequest
	err := transaction.WithContext(ctx).
		Where("organization_id = ? AND status = ?", orgID, status).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
