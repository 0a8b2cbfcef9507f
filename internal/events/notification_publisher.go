package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rigshare/service-booking/internal/application"
	"github.com/rigshare/service-booking/pkg/kafka"
)

// NotificationRequest is the payload the notification service consumes.
type NotificationRequest struct {
	UserID  uuid.UUID         `json:"user_id"`
	Type    string            `json:"type"`
	Payload map[string]string `json:"payload,omitempty"`
}

// NotificationPublisher hands notifications to the notification service over Kafka.
type NotificationPublisher struct {
	producer Publisher
}

// NewNotificationPublisher creates a new NotificationPublisher.
func NewNotificationPublisher(producer Publisher) *NotificationPublisher {
	return &NotificationPublisher{producer: producer}
}

// Send implements application.NotificationSender.
func (p *NotificationPublisher) Send(ctx context.Context, n application.Notification) error {
	evt, err := kafka.NewCloudEvent(sourceBookingService, NotificationRequested, NotificationRequest{
		UserID:  n.UserID,
		Type:    string(n.Type),
		Payload: n.Payload,
	})
	if err != nil {
		return fmt.Errorf("failed to build notification event: %w", err)
	}
	evt.Subject = n.UserID.String()
	return p.producer.PublishEvent(ctx, TopicNotifications, evt)
}
