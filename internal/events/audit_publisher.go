package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/rigshare/service-booking/internal/domain/booking"
	"github.com/rigshare/service-booking/pkg/kafka"
)

// BookingTransitionedEvent is the payload of a booking.transitioned CloudEvent.
type BookingTransitionedEvent struct {
	EventID    uuid.UUID         `json:"event_id"`
	BookingID  uuid.UUID         `json:"booking_id"`
	From       string            `json:"from,omitempty"`
	To         string            `json:"to"`
	ActorID    uuid.UUID         `json:"actor_id"`
	ActorRole  string            `json:"actor_role"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// AuditPublisher stores transition events and forwards them to the
// booking.lifecycle topic. Events whose publish fails stay unpublished in
// the store for the relay job.
type AuditPublisher struct {
	repo     bookingDomain.AuditEventRepository
	producer Publisher
	logger   *zap.Logger
}

// NewAuditPublisher creates a new AuditPublisher.
func NewAuditPublisher(repo bookingDomain.AuditEventRepository, producer Publisher, logger *zap.Logger) *AuditPublisher {
	return &AuditPublisher{repo: repo, producer: producer, logger: logger}
}

// Record implements application.AuditRecorder. Only a failed insert is
// returned; a failed publish is left for the relay.
func (p *AuditPublisher) Record(ctx context.Context, e bookingDomain.TransitionEvent) error {
	if err := p.repo.Save(ctx, e); err != nil {
		return err
	}
	if err := p.Publish(ctx, e); err != nil {
		p.logger.Warn("audit event stored but not published",
			zap.String("event_id", e.ID.String()),
			zap.String("booking_id", e.BookingID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// Publish sends one stored event and marks it published.
func (p *AuditPublisher) Publish(ctx context.Context, e bookingDomain.TransitionEvent) error {
	evt, err := kafka.NewCloudEvent(sourceBookingService, BookingTransitioned, BookingTransitionedEvent{
		EventID:    e.ID,
		BookingID:  e.BookingID,
		From:       string(e.From),
		To:         string(e.To),
		ActorID:    e.ActorID,
		ActorRole:  string(e.ActorRole),
		Reason:     e.Reason,
		Metadata:   e.Metadata,
		OccurredAt: e.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("failed to build transition event: %w", err)
	}
	evt.Subject = e.BookingID.String()

	if err := p.producer.PublishEvent(ctx, TopicBookingLifecycle, evt); err != nil {
		return err
	}
	return p.repo.MarkPublished(ctx, e.ID)
}
