package booking

import (
	"time"

	"github.com/google/uuid"
)

// Metadata keys written by the lifecycle and damage services.
const (
	MetaEngineHoursAtPickup = "engine_hours_at_pickup"
	MetaEngineHoursAtReturn = "engine_hours_at_return"
	MetaEngineHoursUsed     = "engine_hours_used"
	MetaPaymentID           = "payment_id"
	MetaDamageReportID      = "damage_report_id"
	MetaPolicyVersion       = "policy_version"
)

// TransitionEvent is the audit record for one status change. From is empty
// for the creation event.
type TransitionEvent struct {
	ID          uuid.UUID
	BookingID   uuid.UUID
	From        BookingStatus
	To          BookingStatus
	ActorID     uuid.UUID
	ActorRole   ActorRole
	Reason      string
	Metadata    map[string]string
	OccurredAt  time.Time
	PublishedAt *time.Time
}

// NewTransitionEvent creates an unpublished audit event.
func NewTransitionEvent(
	bookingID uuid.UUID,
	from, to BookingStatus,
	actorID uuid.UUID,
	actorRole ActorRole,
	reason string,
	metadata map[string]string,
	at time.Time,
) TransitionEvent {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return TransitionEvent{
		ID:         uuid.New(),
		BookingID:  bookingID,
		From:       from,
		To:         to,
		ActorID:    actorID,
		ActorRole:  actorRole,
		Reason:     reason,
		Metadata:   metadata,
		OccurredAt: at,
	}
}
