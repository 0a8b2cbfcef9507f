// Package listing holds the rentable equipment listing and its live insurance terms.
package listing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rigshare/service-booking/internal/domain/booking"
	"github.com/rigshare/service-booking/pkg/domain"
)

// ListingStatus represents the lifecycle state of a listing.
type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "active"
	ListingStatusArchived ListingStatus = "archived"
)

// InsuranceTerms are the editable insurance fields of a listing.
type InsuranceTerms struct {
	Mode                      booking.InsuranceMode
	Notes                     string
	EstimatedReplacementValue *decimal.Decimal
	DamageExcessNotes         string
}

func (t InsuranceTerms) validate() error {
	if _, err := booking.ParseInsuranceMode(string(t.Mode)); err != nil {
		return domain.NewValidationError(err.Error())
	}
	if t.EstimatedReplacementValue != nil && t.EstimatedReplacementValue.IsNegative() {
		return domain.NewValidationError("replacement value must not be negative")
	}
	return nil
}

// Listing is the aggregate root for a rentable piece of equipment.
type Listing struct {
	id          uuid.UUID
	ownerID     uuid.UUID
	title       string
	category    string
	dailyRate   decimal.Decimal
	deliveryFee decimal.Decimal
	bondAmount  decimal.Decimal
	insurance   InsuranceTerms
	status      ListingStatus
	version     int64
	createdAt   time.Time
	updatedAt   time.Time
}

// NewListingParams holds the inputs of NewListing.
type NewListingParams struct {
	OwnerID     uuid.UUID
	Title       string
	Category    string
	DailyRate   decimal.Decimal
	DeliveryFee decimal.Decimal
	BondAmount  decimal.Decimal
	Insurance   InsuranceTerms
}

// NewListing creates an active listing with validated fields.
func NewListing(p NewListingParams) (*Listing, error) {
	if p.OwnerID == uuid.Nil {
		return nil, domain.NewValidationError("owner ID is required")
	}
	if strings.TrimSpace(p.Title) == "" {
		return nil, domain.NewValidationError("listing title is required")
	}
	if !p.DailyRate.IsPositive() {
		return nil, domain.NewValidationError("daily rate must be positive")
	}
	if p.DeliveryFee.IsNegative() || p.BondAmount.IsNegative() {
		return nil, domain.NewValidationError("delivery fee and bond must not be negative")
	}
	if err := p.Insurance.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Listing{
		id:          uuid.New(),
		ownerID:     p.OwnerID,
		title:       strings.TrimSpace(p.Title),
		category:    p.Category,
		dailyRate:   p.DailyRate,
		deliveryFee: p.DeliveryFee,
		bondAmount:  p.BondAmount,
		insurance:   p.Insurance,
		status:      ListingStatusActive,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstruct rebuilds a Listing from persistence data (no validation).
func Reconstruct(
	id, ownerID uuid.UUID,
	title, category string,
	dailyRate, deliveryFee, bondAmount decimal.Decimal,
	insurance InsuranceTerms,
	status ListingStatus,
	version int64,
	createdAt, updatedAt time.Time,
) *Listing {
	return &Listing{
		id:          id,
		ownerID:     ownerID,
		title:       title,
		category:    category,
		dailyRate:   dailyRate,
		deliveryFee: deliveryFee,
		bondAmount:  bondAmount,
		insurance:   insurance,
		status:      status,
		version:     version,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// --- Getters ---

func (l *Listing) ID() uuid.UUID                { return l.id }
func (l *Listing) OwnerID() uuid.UUID           { return l.ownerID }
func (l *Listing) Title() string                { return l.title }
func (l *Listing) Category() string             { return l.category }
func (l *Listing) DailyRate() decimal.Decimal   { return l.dailyRate }
func (l *Listing) DeliveryFee() decimal.Decimal { return l.deliveryFee }
func (l *Listing) BondAmount() decimal.Decimal  { return l.bondAmount }
func (l *Listing) Insurance() InsuranceTerms    { return l.insurance }
func (l *Listing) Status() ListingStatus        { return l.status }
func (l *Listing) Version() int64               { return l.version }
func (l *Listing) CreatedAt() time.Time         { return l.createdAt }
func (l *Listing) UpdatedAt() time.Time         { return l.updatedAt }

// --- Behavior ---

// IsOwnedBy checks if the listing belongs to the given owner.
func (l *Listing) IsOwnedBy(ownerID uuid.UUID) bool {
	return l.ownerID == ownerID
}

// IsActive returns true if the listing can be booked.
func (l *Listing) IsActive() bool {
	return l.status == ListingStatusActive
}

// Archive hides the listing from new bookings.
func (l *Listing) Archive() {
	l.status = ListingStatusArchived
	l.version++
	l.updatedAt = time.Now().UTC()
}

// UpdateInsurance replaces the live insurance terms. Existing bookings keep
// the snapshot they were created with.
func (l *Listing) UpdateInsurance(terms InsuranceTerms) error {
	if err := terms.validate(); err != nil {
		return err
	}
	l.insurance = terms
	l.version++
	l.updatedAt = time.Now().UTC()
	return nil
}

// SnapshotInsurance copies the current insurance terms for a new booking.
func (l *Listing) SnapshotInsurance() booking.InsuranceSnapshot {
	snap := booking.InsuranceSnapshot{
		Mode:              l.insurance.Mode,
		Notes:             l.insurance.Notes,
		DamageExcessNotes: l.insurance.DamageExcessNotes,
	}
	if v := l.insurance.EstimatedReplacementValue; v != nil {
		c := *v
		snap.EstimatedReplacementValue = &c
	}
	return snap
}

// RentalDays returns the number of billable days between start and end,
// counting any part day as a full day and never less than one.
func RentalDays(start, end time.Time) int {
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// RentalCost prices the date range at the listing's daily rate.
func (l *Listing) RentalCost(start, end time.Time) (decimal.Decimal, error) {
	if end.Before(start) {
		return decimal.Zero, domain.NewValidationError(fmt.Sprintf(
			"end date %s is before start date %s", end.Format(time.DateOnly), start.Format(time.DateOnly)))
	}
	return l.dailyRate.Mul(decimal.NewFromInt(int64(RentalDays(start, end)))), nil
}
