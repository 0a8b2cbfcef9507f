package booking

import (
	"context"

	"github.com/google/uuid"
)

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByRenterID retrieves bookings made by a renter with pagination.
	FindByRenterID(ctx context.Context, renterID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// FindByOwnerID retrieves bookings on an owner's listings with pagination.
	FindByOwnerID(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes to an existing booking. The write only applies
	// if the stored version is booking.Version()-1 and the stored status is
	// expectedStatus; otherwise it returns a conflict error.
	Update(ctx context.Context, booking *Booking, expectedStatus BookingStatus) error
}

// AuditEventRepository persists transition events.
type AuditEventRepository interface {
	// Save stores a new event.
	Save(ctx context.Context, event TransitionEvent) error

	// FindByBookingID returns a booking's events oldest first.
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]TransitionEvent, error)

	// FindUnpublished returns up to limit events never published to the broker.
	FindUnpublished(ctx context.Context, limit int) ([]TransitionEvent, error)

	// MarkPublished stamps published_at on the given event.
	MarkPublished(ctx context.Context, id uuid.UUID) error
}
