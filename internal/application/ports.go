package application

import (
	"context"

	"github.com/google/uuid"

	bookingDomain "github.com/rigshare/service-booking/internal/domain/booking"
	"github.com/rigshare/service-booking/internal/domain/policy"
)

// AuditRecorder stores and forwards transition events.
type AuditRecorder interface {
	Record(ctx context.Context, event bookingDomain.TransitionEvent) error
}

// NotificationSender delivers a notification to one user.
type NotificationSender interface {
	Send(ctx context.Context, n Notification) error
}

// PolicyCache serves the active policy version.
type PolicyCache interface {
	Get(ctx context.Context, slug string) (*policy.Version, error)
	Invalidate(slug string)
}

// Actor is the user acting on a booking and the role they act in.
type Actor struct {
	ID   uuid.UUID
	Role bookingDomain.ActorRole
}

// SystemActor is used for automated transitions.
var SystemActor = Actor{ID: uuid.Nil, Role: bookingDomain.ActorSystem}
