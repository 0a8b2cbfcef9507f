package damage

import (
	"context"

	"github.com/google/uuid"

	"github.com/rigshare/service-booking/internal/domain/booking"
)

// BookingWrite is a booking damage-status change committed together with a
// report write. ExpectedStatus guards the booking's optimistic lock.
type BookingWrite struct {
	Booking        *booking.Booking
	ExpectedStatus booking.BookingStatus
}

// ReportRepository defines persistence operations for damage reports.
// Save and Update apply the optional BookingWrite in the same transaction;
// if either write fails neither is kept.
type ReportRepository interface {
	Save(ctx context.Context, report *Report, bw *BookingWrite) error
	Update(ctx context.Context, report *Report, bw *BookingWrite) error
	FindByID(ctx context.Context, id uuid.UUID) (*Report, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*Report, error)
}
