package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rigshare/service-booking/pkg/domain"
)

// Booking is the aggregate root for an equipment rental.
type Booking struct {
	id        uuid.UUID
	listingID uuid.UUID
	renterID  uuid.UUID
	ownerID   uuid.UUID

	startDate  time.Time
	endDate    time.Time
	pickedUpAt *time.Time
	returnedAt *time.Time

	status       BookingStatus
	damageStatus DamageStatus

	fees      FeeBreakdown
	insurance InsuranceSnapshot
	policy    PolicySnapshot

	engineHoursAtPickup *decimal.Decimal
	engineHoursAtReturn *decimal.Decimal
	engineHoursUsed     *decimal.Decimal

	paymentSucceeded   bool
	inspectionComplete bool
	statusReason       string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewBookingParams holds the inputs of NewBooking.
type NewBookingParams struct {
	ListingID uuid.UUID
	RenterID  uuid.UUID
	OwnerID   uuid.UUID
	StartDate time.Time
	EndDate   time.Time
	Fees      FeeBreakdown
	Insurance InsuranceSnapshot
	Policy    PolicySnapshot
}

// NewBooking creates a PENDING booking. Fees, insurance and policy are
// captured here and have no setters.
func NewBooking(p NewBookingParams) (*Booking, error) {
	if p.ListingID == uuid.Nil {
		return nil, domain.NewValidationError("listing ID is required")
	}
	if p.RenterID == uuid.Nil || p.OwnerID == uuid.Nil {
		return nil, domain.NewValidationError("renter and owner IDs are required")
	}
	if p.RenterID == p.OwnerID {
		return nil, domain.NewValidationError("renter cannot book their own listing")
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return nil, domain.NewValidationError("start and end dates are required")
	}
	if p.EndDate.Before(p.StartDate) {
		return nil, domain.NewValidationError("end date must not be before start date")
	}
	if p.Policy.VersionAccepted <= 0 {
		return nil, domain.NewValidationError("accepted policy version is required")
	}
	if !p.Policy.OwnerTermsAccepted || !p.Policy.RenterResponsibilityAccepted {
		return nil, domain.NewValidationError("owner terms and renter responsibility must both be accepted")
	}

	now := time.Now().UTC()
	return &Booking{
		id:           uuid.New(),
		listingID:    p.ListingID,
		renterID:     p.RenterID,
		ownerID:      p.OwnerID,
		startDate:    p.StartDate,
		endDate:      p.EndDate,
		status:       StatusPending,
		damageStatus: DamageNone,
		fees:         p.Fees,
		insurance:    p.Insurance,
		policy:       p.Policy,
		version:      1,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructParams mirrors every persisted field of a Booking.
type ReconstructParams struct {
	ID                  uuid.UUID
	ListingID           uuid.UUID
	RenterID            uuid.UUID
	OwnerID             uuid.UUID
	StartDate           time.Time
	EndDate             time.Time
	PickedUpAt          *time.Time
	ReturnedAt          *time.Time
	Status              BookingStatus
	DamageStatus        DamageStatus
	Fees                FeeBreakdown
	Insurance           InsuranceSnapshot
	Policy              PolicySnapshot
	EngineHoursAtPickup *decimal.Decimal
	EngineHoursAtReturn *decimal.Decimal
	EngineHoursUsed     *decimal.Decimal
	PaymentSucceeded    bool
	InspectionComplete  bool
	StatusReason        string
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(p ReconstructParams) *Booking {
	return &Booking{
		id:                  p.ID,
		listingID:           p.ListingID,
		renterID:            p.RenterID,
		ownerID:             p.OwnerID,
		startDate:           p.StartDate,
		endDate:             p.EndDate,
		pickedUpAt:          p.PickedUpAt,
		returnedAt:          p.ReturnedAt,
		status:              p.Status,
		damageStatus:        p.DamageStatus,
		fees:                p.Fees,
		insurance:           p.Insurance,
		policy:              p.Policy,
		engineHoursAtPickup: p.EngineHoursAtPickup,
		engineHoursAtReturn: p.EngineHoursAtReturn,
		engineHoursUsed:     p.EngineHoursUsed,
		paymentSucceeded:    p.PaymentSucceeded,
		inspectionComplete:  p.InspectionComplete,
		statusReason:        p.StatusReason,
		version:             p.Version,
		createdAt:           p.CreatedAt,
		updatedAt:           p.UpdatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// ListingID returns the rented listing.
func (b *Booking) ListingID() uuid.UUID { return b.listingID }

// RenterID returns the renter's user ID.
func (b *Booking) RenterID() uuid.UUID { return b.renterID }

// OwnerID returns the listing owner's user ID.
func (b *Booking) OwnerID() uuid.UUID { return b.ownerID }

// StartDate returns the requested start date.
func (b *Booking) StartDate() time.Time { return b.startDate }

// EndDate returns the requested end date.
func (b *Booking) EndDate() time.Time { return b.endDate }

// PickedUpAt returns the handover time, or nil before IN_USE.
func (b *Booking) PickedUpAt() *time.Time { return b.pickedUpAt }

// ReturnedAt returns the return time, or nil before return.
func (b *Booking) ReturnedAt() *time.Time { return b.returnedAt }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// DamageStatus returns the damage liability status.
func (b *Booking) DamageStatus() DamageStatus { return b.damageStatus }

// Fees returns the fee snapshot.
func (b *Booking) Fees() FeeBreakdown { return b.fees }

// Insurance returns the insurance snapshot.
func (b *Booking) Insurance() InsuranceSnapshot { return b.insurance }

// Policy returns the policy snapshot.
func (b *Booking) Policy() PolicySnapshot { return b.policy }

// PaymentSucceeded reports whether the payment signal was received.
func (b *Booking) PaymentSucceeded() bool { return b.paymentSucceeded }

// InspectionComplete reports whether the return checklist is done.
func (b *Booking) InspectionComplete() bool { return b.inspectionComplete }

// StatusReason returns the reason given for the latest transition.
func (b *Booking) StatusReason() string { return b.statusReason }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// EngineHoursAtPickup returns the pickup reading, if any.
func (b *Booking) EngineHoursAtPickup() *decimal.Decimal { return b.engineHoursAtPickup }

// EngineHoursAtReturn returns the return reading, if any.
func (b *Booking) EngineHoursAtReturn() *decimal.Decimal { return b.engineHoursAtReturn }

// EngineHoursUsed is return minus pickup, or nil if either reading is missing.
func (b *Booking) EngineHoursUsed() *decimal.Decimal { return b.engineHoursUsed }

// BondAmount returns the bond captured at booking time.
func (b *Booking) BondAmount() decimal.Decimal { return b.fees.BondAmount }

// IsOwner reports whether userID is the listing owner on this booking.
func (b *Booking) IsOwner(userID uuid.UUID) bool { return userID != uuid.Nil && userID == b.ownerID }

// IsRenter reports whether userID is the renter on this booking.
func (b *Booking) IsRenter(userID uuid.UUID) bool { return userID != uuid.Nil && userID == b.renterID }

// --- Behavior ---

// ApplyTransition moves the booking to target. It checks only the terminal
// lock and graph edge; actors and preconditions are the validator's job.
func (b *Booking) ApplyTransition(target BookingStatus, reason string, at time.Time) error {
	if b.status.IsTerminal() {
		return domain.NewTerminalStateError(string(b.status))
	}
	if !b.status.CanTransitionTo(target) {
		return domain.NewInvalidTransitionError(
			fmt.Sprintf("invalid transition from %s to %s", b.status, target))
	}

	at = at.UTC()
	switch {
	case target == StatusInUse:
		b.pickedUpAt = &at
	case b.status == StatusInUse && target == StatusAwaitingReturnInspection:
		b.returnedAt = &at
	}
	b.status = target
	b.statusReason = reason
	b.updatedAt = at
	return nil
}

// RecordPickupHours stores the engine-hours reading taken at handover.
func (b *Booking) RecordPickupHours(hours *decimal.Decimal) error {
	if hours == nil {
		return nil
	}
	if hours.IsNegative() {
		return domain.NewValidationError("engine hours must not be negative")
	}
	h := *hours
	b.engineHoursAtPickup = &h
	b.recomputeHoursUsed()
	return nil
}

// RecordReturnHours stores the engine-hours reading taken at return.
func (b *Booking) RecordReturnHours(hours *decimal.Decimal) error {
	if hours == nil {
		return nil
	}
	if hours.IsNegative() {
		return domain.NewValidationError("engine hours must not be negative")
	}
	if b.engineHoursAtPickup != nil && hours.LessThan(*b.engineHoursAtPickup) {
		return domain.NewValidationError(fmt.Sprintf(
			"engine hours at return (%s) must not be less than at pickup (%s)",
			hours.String(), b.engineHoursAtPickup.String()))
	}
	h := *hours
	b.engineHoursAtReturn = &h
	b.recomputeHoursUsed()
	return nil
}

func (b *Booking) recomputeHoursUsed() {
	if b.engineHoursAtPickup == nil || b.engineHoursAtReturn == nil {
		b.engineHoursUsed = nil
		return
	}
	used := b.engineHoursAtReturn.Sub(*b.engineHoursAtPickup)
	b.engineHoursUsed = &used
}

// MarkPaymentSucceeded records the payment-confirmation signal.
func (b *Booking) MarkPaymentSucceeded() {
	b.paymentSucceeded = true
	b.updatedAt = time.Now().UTC()
}

// MarkInspectionComplete records that the return checklist is done.
func (b *Booking) MarkInspectionComplete() error {
	if b.status != StatusAwaitingReturnInspection {
		return domain.NewPreconditionError(fmt.Sprintf(
			"return inspection can only be completed in %s, booking is %s",
			StatusAwaitingReturnInspection, b.status))
	}
	b.inspectionComplete = true
	b.updatedAt = time.Now().UTC()
	return nil
}

// SetDamageStatus updates the damage liability field. Only the damage
// workflow calls this, and it is allowed in terminal booking states.
func (b *Booking) SetDamageStatus(status DamageStatus) {
	b.damageStatus = status
	b.updatedAt = time.Now().UTC()
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
}
