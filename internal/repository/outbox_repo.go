package repository

import (
	"context"

	"crowdfund/internal/model"

	"gorm.io/gorm"
)

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	return storageErr(pick(tx, r.db).WithContext(ctx).Create(msg).Error)
}

func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, storageErr(err)
}

func (r *OutboxRepository) MarkAsSent(ctx context.Context, id int64) error {
	return storageErr(r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ? AND status = ?", id, model.OutboxStatusPending).
		Update("status", model.OutboxStatusSent).Error)
}

// RecordFailure bumps the retry counter, keeps the last error, and moves the
// message to FAILED once it has been tried maxRetries times.
func (r *OutboxRepository) RecordFailure(ctx context.Context, msg *model.OutboxMessage, cause string, maxRetries int) error {
	if len(cause) > 512 {
		cause = cause[:512]
	}
	updates := map[string]interface{}{
		"retry_count": gorm.Expr("retry_count + 1"),
		"last_error":  cause,
	}
	if msg.RetryCount+1 >= maxRetries {
		updates["status"] = model.OutboxStatusFailed
	}
	return storageErr(r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", msg.ID).
		Updates(updates).Error)
}

func (r *OutboxRepository) GetFailedMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusFailed).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, storageErr(err)
}

// Requeue puts a FAILED message back to PENDING with a fresh retry budget.
func (r *OutboxRepository) Requeue(ctx context.Context, id int64) error {
	return storageErr(r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ? AND status = ?", id, model.OutboxStatusFailed).
		Updates(map[string]interface{}{
			"status":      model.OutboxStatusPending,
			"retry_count": 0,
		}).Error)
}
