package events

import (
	"context"

	"github.com/google/uuid"

	"github.com/rigshare/service-booking/pkg/kafka"
)

// Topics and CloudEvent types used by the booking service.
const (
	TopicPaymentEvents = "payment.events"
	PaymentSucceeded   = "payment.succeeded"

	TopicBookingLifecycle = "booking.lifecycle"
	BookingTransitioned   = "booking.transitioned"
	TopicNotifications    = "notification.requests"
	NotificationRequested = "notification.requested"

	sourceBookingService = "service-booking"
)

// PaymentSucceededEvent is published by the payment service once a booking's
// charge has cleared.
type PaymentSucceededEvent struct {
	BookingID uuid.UUID `json:"booking_id"`
	PaymentID string    `json:"payment_id"`
}

// Publisher writes CloudEvents to a topic. pkg/kafka.Producer satisfies it.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}
