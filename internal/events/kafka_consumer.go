package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rigshare/service-booking/internal/application"
	"github.com/rigshare/service-booking/pkg/domain"
	"github.com/rigshare/service-booking/pkg/kafka"
)

// PaymentRecorder applies a confirmed payment to a booking.
type PaymentRecorder interface {
	RecordPaymentSuccess(ctx context.Context, bookingID uuid.UUID, paymentID string) application.TransitionResult
}

// PaymentEventConsumer listens to payment events and moves paid bookings to
// AWAITING_PICKUP.
type PaymentEventConsumer struct {
	consumer *kafka.Consumer
	service  PaymentRecorder
	logger   *zap.Logger
}

// NewPaymentEventConsumer creates a new PaymentEventConsumer.
func NewPaymentEventConsumer(
	brokers []string,
	groupID string,
	service PaymentRecorder,
	logger *zap.Logger,
) *PaymentEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, TopicPaymentEvents, logger)
	return &PaymentEventConsumer{
		consumer: consumer,
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming payment events. This blocks until the context is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *PaymentEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *PaymentEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var cloudEvent kafka.CloudEvent
	if err := json.Unmarshal(msg.Value, &cloudEvent); err != nil {
		c.logger.Error("failed to parse cloud event from payment topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case PaymentSucceeded:
		return c.handlePaymentSucceeded(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled payment event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *PaymentEventConsumer) handlePaymentSucceeded(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt PaymentSucceededEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse PaymentSucceededEvent data",
			zap.Error(err),
		)
		return nil
	}

	c.logger.Info("processing payment succeeded event",
		zap.String("booking_id", evt.BookingID.String()),
		zap.String("payment_id", evt.PaymentID),
	)

	result := c.service.RecordPaymentSuccess(ctx, evt.BookingID, evt.PaymentID)
	if !result.Success {
		// Only storage trouble is worth redelivering. A booking still PENDING
		// keeps the flag and is released for pickup when the owner accepts it.
		switch result.ErrorKind {
		case domain.KindPersistence, domain.KindConflict:
			c.logger.Error("failed to record payment",
				zap.String("booking_id", evt.BookingID.String()),
				zap.String("error", result.Error),
			)
			return result.Err()
		default:
			c.logger.Warn("payment recorded without transition",
				zap.String("booking_id", evt.BookingID.String()),
				zap.String("kind", string(result.ErrorKind)),
				zap.String("error", result.Error),
			)
			return nil
		}
	}

	c.logger.Info("booking ready for pickup after payment",
		zap.String("booking_id", evt.BookingID.String()),
	)
	return nil
}
