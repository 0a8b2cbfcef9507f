package booking

import "fmt"

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusPending                  BookingStatus = "PENDING"
	StatusAccepted                 BookingStatus = "ACCEPTED"
	StatusDeclined                 BookingStatus = "DECLINED"
	StatusCancelled                BookingStatus = "CANCELLED"
	StatusAwaitingPickup           BookingStatus = "AWAITING_PICKUP"
	StatusInUse                    BookingStatus = "IN_USE"
	StatusAwaitingReturnInspection BookingStatus = "AWAITING_RETURN_INSPECTION"
	StatusInDispute                BookingStatus = "IN_DISPUTE"
	StatusCompleted                BookingStatus = "COMPLETED"
)

// AllStatuses lists every booking status in lifecycle order.
var AllStatuses = []BookingStatus{
	StatusPending,
	StatusAccepted,
	StatusDeclined,
	StatusCancelled,
	StatusAwaitingPickup,
	StatusInUse,
	StatusAwaitingReturnInspection,
	StatusInDispute,
	StatusCompleted,
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, exists := transitionTable[s]
	return exists
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case StatusDeclined, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether the graph has an edge from s to target,
// ignoring actors and preconditions.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	_, ok := LookupTransition(s, target)
	return ok
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning an error if invalid.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}

// DamageStatus tracks damage liability on a booking, independent of BookingStatus.
type DamageStatus string

const (
	DamageNone                DamageStatus = "NONE"
	DamagePotentialReported   DamageStatus = "POTENTIAL_DAMAGE_REPORTED"
	DamageConfirmed           DamageStatus = "CONFIRMED_DAMAGE"
	DamageResolvedNoCharge    DamageStatus = "RESOLVED_NO_CHARGE"
	DamageResolvedBondPartial DamageStatus = "RESOLVED_BOND_PARTIAL"
	DamageResolvedBondFull    DamageStatus = "RESOLVED_BOND_FULL"
)

// ParseDamageStatus converts a string to a DamageStatus.
func ParseDamageStatus(s string) (DamageStatus, error) {
	switch d := DamageStatus(s); d {
	case DamageNone, DamagePotentialReported, DamageConfirmed,
		DamageResolvedNoCharge, DamageResolvedBondPartial, DamageResolvedBondFull:
		return d, nil
	}
	return "", fmt.Errorf("invalid damage status: %s", s)
}
