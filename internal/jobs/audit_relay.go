// Package jobs runs the service's scheduled background work.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	bookingDomain "github.com/rigshare/service-booking/internal/domain/booking"
)

// DefaultRelaySchedule is used when no schedule is configured.
const DefaultRelaySchedule = "@every 1m"

const relayBatchSize = 100

// EventPublisher publishes one stored audit event and marks it published.
type EventPublisher interface {
	Publish(ctx context.Context, e bookingDomain.TransitionEvent) error
}

// AuditRelay republishes audit events whose first publish failed.
type AuditRelay struct {
	cron      *cron.Cron
	repo      bookingDomain.AuditEventRepository
	publisher EventPublisher
	timeout   time.Duration
	logger    *zap.Logger
}

// NewAuditRelay registers the relay on schedule. Unparseable schedules are
// rejected here rather than silently never running.
func NewAuditRelay(schedule string, repo bookingDomain.AuditEventRepository, publisher EventPublisher, logger *zap.Logger) (*AuditRelay, error) {
	if schedule == "" {
		schedule = DefaultRelaySchedule
	}
	r := &AuditRelay{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		repo:      repo,
		publisher: publisher,
		timeout:   30 * time.Second,
		logger:    logger,
	}
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid audit relay schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start begins the cron scheduler.
func (r *AuditRelay) Start() {
	r.logger.Info("starting audit relay")
	r.cron.Start()
}

// Stop waits for a running relay pass to finish.
func (r *AuditRelay) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("audit relay stopped")
}

func (r *AuditRelay) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if _, err := r.RelayOnce(ctx); err != nil {
		r.logger.Error("audit relay pass failed", zap.Error(err))
	}
}

// RelayOnce publishes one batch of unpublished events and returns how many
// went out. A failed event is logged and retried on the next pass.
func (r *AuditRelay) RelayOnce(ctx context.Context) (int, error) {
	events, err := r.repo.FindUnpublished(ctx, relayBatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, e := range events {
		if err := r.publisher.Publish(ctx, e); err != nil {
			r.logger.Error("failed to relay audit event",
				zap.String("event_id", e.ID.String()),
				zap.String("booking_id", e.BookingID.String()),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	if sent > 0 {
		r.logger.Info("audit events relayed", zap.Int("count", sent), zap.Int("pending", len(events)-sent))
	}
	return sent, nil
}
