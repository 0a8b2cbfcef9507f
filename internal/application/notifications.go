package application

import (
	"github.com/google/uuid"

	bookingDomain "github.com/rigshare/service-booking/internal/domain/booking"
)

// NotificationType identifies the template the notification sink renders.
type NotificationType string

const (
	NotifyBookingRequested     NotificationType = "booking_requested"
	NotifyBookingAccepted      NotificationType = "booking_accepted"
	NotifyBookingDeclined      NotificationType = "booking_declined"
	NotifyBookingCancelled     NotificationType = "booking_cancelled"
	NotifyReadyForPickup       NotificationType = "booking_ready_for_pickup"
	NotifyRentalStarted        NotificationType = "rental_started"
	NotifyAwaitingInspection   NotificationType = "booking_awaiting_inspection"
	NotifyDisputeRaised        NotificationType = "dispute_raised"
	NotifyBookingCompleted     NotificationType = "booking_completed"
	NotifyDamageReported       NotificationType = "damage_reported"
	NotifyDamageReportResolved NotificationType = "damage_report_resolved"
)

// Notification payload keys.
const (
	PayloadBookingID      = "booking_id"
	PayloadPreviousStatus = "previous_status"
	PayloadNewStatus      = "new_status"
	PayloadReason         = "reason"
	PayloadReportID       = "damage_report_id"
	PayloadOutcome        = "outcome"
)

// Notification is one message for one user.
type Notification struct {
	UserID  uuid.UUID
	Type    NotificationType
	Payload map[string]string
}

type recipient int

const (
	toRenter recipient = iota
	toOwner
	toOtherParty
)

type notificationRule struct {
	kind NotificationType
	to   recipient
}

// notificationRuleFor returns the rule for entering status. The switch
// lists every status so adding one without a decision is visible here.
func notificationRuleFor(status bookingDomain.BookingStatus) (notificationRule, bool) {
	switch status {
	case bookingDomain.StatusAccepted:
		return notificationRule{NotifyBookingAccepted, toRenter}, true
	case bookingDomain.StatusDeclined:
		return notificationRule{NotifyBookingDeclined, toRenter}, true
	case bookingDomain.StatusCancelled:
		return notificationRule{NotifyBookingCancelled, toOtherParty}, true
	case bookingDomain.StatusAwaitingPickup:
		return notificationRule{NotifyReadyForPickup, toRenter}, true
	case bookingDomain.StatusInUse:
		return notificationRule{NotifyRentalStarted, toRenter}, true
	case bookingDomain.StatusAwaitingReturnInspection:
		return notificationRule{NotifyAwaitingInspection, toOwner}, true
	case bookingDomain.StatusInDispute:
		return notificationRule{NotifyDisputeRaised, toOtherParty}, true
	case bookingDomain.StatusCompleted:
		return notificationRule{NotifyBookingCompleted, toRenter}, true
	case bookingDomain.StatusPending:
		return notificationRule{}, false
	}
	return notificationRule{}, false
}

// recipientFor picks the user for a rule. The other party of an admin or
// system action is the renter.
func recipientFor(rule notificationRule, bk *bookingDomain.Booking, actorID uuid.UUID) uuid.UUID {
	switch rule.to {
	case toOwner:
		return bk.OwnerID()
	case toOtherParty:
		if bk.IsRenter(actorID) {
			return bk.OwnerID()
		}
		return bk.RenterID()
	default:
		return bk.RenterID()
	}
}

// otherParty returns the booking party that is not actorID. Admins and the
// system get the renter.
func otherParty(bk *bookingDomain.Booking, actorID uuid.UUID) uuid.UUID {
	return recipientFor(notificationRule{to: toOtherParty}, bk, actorID)
}
