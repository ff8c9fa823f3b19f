package job

import (
	"context"
	"time"

	"crowdfund/internal/infrastructure/mq"
	"crowdfund/internal/model"
	"crowdfund/internal/repository"
	"crowdfund/pkg/logger"
	"crowdfund/pkg/monitor"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxSender publishes the events committed alongside ledger entries.
// Delivery is at least once; consumers dedupe on the message key.
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  mq.Publisher
	maxRetries int
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, maxRetries int) *OutboxSender {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		maxRetries: maxRetries,
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	logger.Info("outbox sender started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("outbox sender exiting", zap.Error(ctx.Err()))
			return
		case <-s.stopCh:
			logger.Info("outbox sender stopped")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// processPendingMessages sends one batch and returns how many were delivered.
func (s *OutboxSender) processPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		logger.Error("load pending outbox messages", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(ctx, msg.Topic, msg.MessageKey, []byte(msg.Payload))
	if err == nil {
		monitor.ObserveOutbox(msg.Topic, "sent")
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID); updateErr != nil {
			// the message will be published again on the next tick
			logger.Error("mark outbox message sent",
				zap.Int64("id", msg.ID), zap.Error(updateErr))
		}
		return true
	}

	monitor.ObserveOutbox(msg.Topic, "error")
	logger.Warn("publish outbox message",
		zap.Int64("id", msg.ID),
		zap.String("topic", msg.Topic),
		zap.String("key", msg.MessageKey),
		zap.Int("retry", msg.RetryCount+1),
		zap.Error(err))

	if err := s.outboxRepo.RecordFailure(ctx, msg, err.Error(), s.maxRetries); err != nil {
		logger.Error("record outbox failure", zap.Int64("id", msg.ID), zap.Error(err))
		return false
	}
	if msg.RetryCount+1 >= s.maxRetries {
		monitor.ObserveOutbox(msg.Topic, "failed")
		logger.Error("outbox message gave up after max retries",
			zap.Int64("id", msg.ID), zap.Int("max_retries", s.maxRetries))
	}
	return false
}
