package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	bookingDomain "github.com/rigshare/service-booking/internal/domain/booking"
	listingDomain "github.com/rigshare/service-booking/internal/domain/listing"
	"github.com/rigshare/service-booking/pkg/domain"
)

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	ListingID                    uuid.UUID `json:"listing_id" binding:"required"`
	StartDate                    time.Time `json:"start_date" binding:"required"`
	EndDate                      time.Time `json:"end_date" binding:"required"`
	AcceptedPolicyVersion        int       `json:"accepted_policy_version" binding:"required"`
	OwnerTermsAccepted           bool      `json:"owner_terms_accepted"`
	RenterResponsibilityAccepted bool      `json:"renter_responsibility_accepted"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID                  uuid.UUID                       `json:"id"`
	ListingID           uuid.UUID                       `json:"listing_id"`
	RenterID            uuid.UUID                       `json:"renter_id"`
	OwnerID             uuid.UUID                       `json:"owner_id"`
	Status              string                          `json:"status"`
	DamageStatus        string                          `json:"damage_status"`
	StartDate           time.Time                       `json:"start_date"`
	EndDate             time.Time                       `json:"end_date"`
	PickedUpAt          *time.Time                      `json:"picked_up_at,omitempty"`
	ReturnedAt          *time.Time                      `json:"returned_at,omitempty"`
	Fees                bookingDomain.FeeBreakdown      `json:"fees"`
	Currency            string                          `json:"currency"`
	Insurance           bookingDomain.InsuranceSnapshot `json:"insurance"`
	Policy              bookingDomain.PolicySnapshot    `json:"policy"`
	EngineHoursAtPickup *decimal.Decimal                `json:"engine_hours_at_pickup,omitempty"`
	EngineHoursAtReturn *decimal.Decimal                `json:"engine_hours_at_return,omitempty"`
	EngineHoursUsed     *decimal.Decimal                `json:"engine_hours_used,omitempty"`
	PaymentSucceeded    bool                            `json:"payment_succeeded"`
	InspectionComplete  bool                            `json:"inspection_complete"`
	StatusReason        string                          `json:"status_reason,omitempty"`
	Version             int64                           `json:"version"`
	CreatedAt           time.Time                       `json:"created_at"`
	UpdatedAt           time.Time                       `json:"updated_at"`
}

// AuditEventDTO is the response representation of a transition event.
type AuditEventDTO struct {
	ID         uuid.UUID         `json:"id"`
	BookingID  uuid.UUID         `json:"booking_id"`
	From       string            `json:"from,omitempty"`
	To         string            `json:"to"`
	ActorID    uuid.UUID         `json:"actor_id"`
	ActorRole  string            `json:"actor_role"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// BookingStatsDTO summarizes bookings for the admin dashboard.
type BookingStatsDTO struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

// BookingService creates bookings and serves booking queries.
type BookingService struct {
	repo      bookingDomain.BookingRepository
	auditRepo bookingDomain.AuditEventRepository
	listings  listingDomain.ListingRepository
	insurance *InsuranceService
	fees      *bookingDomain.FeeCalculator
	audit     AuditRecorder
	notifier  NotificationSender
	logger    *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repo bookingDomain.BookingRepository,
	auditRepo bookingDomain.AuditEventRepository,
	listings listingDomain.ListingRepository,
	insurance *InsuranceService,
	fees *bookingDomain.FeeCalculator,
	audit AuditRecorder,
	notifier NotificationSender,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:      repo,
		auditRepo: auditRepo,
		listings:  listings,
		insurance: insurance,
		fees:      fees,
		audit:     audit,
		notifier:  notifier,
		logger:    logger,
	}
}

// CreateBooking creates a PENDING booking for renterID. Fees and the
// insurance and policy snapshots are fixed at this point.
func (s *BookingService) CreateBooking(ctx context.Context, renterID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	listing, err := s.listings.FindByID(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}
	if !listing.IsActive() {
		return nil, domain.NewValidationError("listing is not available for booking")
	}
	if listing.IsOwnedBy(renterID) {
		return nil, domain.NewValidationError("renter cannot book their own listing")
	}

	insurance, policySnap, err := s.insurance.Snapshot(ctx, listing, bookingDomain.PolicySnapshot{
		VersionAccepted:              req.AcceptedPolicyVersion,
		OwnerTermsAccepted:           req.OwnerTermsAccepted,
		RenterResponsibilityAccepted: req.RenterResponsibilityAccepted,
	})
	if err != nil {
		return nil, err
	}

	rentalCost, err := listing.RentalCost(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	fees, err := s.fees.Calculate(rentalCost, listing.DeliveryFee(), listing.BondAmount())
	if err != nil {
		return nil, err
	}

	bk, err := bookingDomain.NewBooking(bookingDomain.NewBookingParams{
		ListingID: listing.ID(),
		RenterID:  renterID,
		OwnerID:   listing.OwnerID(),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Fees:      fees,
		Insurance: insurance,
		Policy:    policySnap,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, bk); err != nil {
		s.logger.Error("failed to save booking", zap.Error(err))
		return nil, domain.NewPersistenceError("failed to save booking", err)
	}

	evt := bookingDomain.NewTransitionEvent(
		bk.ID(), "", bookingDomain.StatusPending,
		renterID, bookingDomain.ActorRenter,
		"Booking requested",
		map[string]string{bookingDomain.MetaPolicyVersion: fmt.Sprintf("%d", policySnap.VersionAccepted)},
		bk.CreatedAt(),
	)
	if err := s.audit.Record(ctx, evt); err != nil {
		s.logger.Error("failed to record booking creation audit event",
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err),
		)
	}

	if err := s.notifier.Send(ctx, Notification{
		UserID: bk.OwnerID(),
		Type:   NotifyBookingRequested,
		Payload: map[string]string{
			PayloadBookingID: bk.ID().String(),
			PayloadNewStatus: string(bookingDomain.StatusPending),
		},
	}); err != nil {
		s.logger.Error("failed to send booking requested notification",
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err),
		)
	}

	s.logger.Info("booking created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("listing_id", listing.ID().String()),
		zap.String("renter_id", renterID.String()),
		zap.String("total_charged", fees.TotalCharged.StringFixed(2)),
	)

	result := toBookingDTO(bk)
	return &result, nil
}

// GetBooking returns a booking visible to userID.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, userID uuid.UUID, isAdmin bool) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !bk.IsOwner(userID) && !bk.IsRenter(userID) {
		return nil, domain.NewForbiddenError("you are not a party to this booking")
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// ListRenterBookings returns bookings made by renterID.
func (s *BookingService) ListRenterBookings(ctx context.Context, renterID uuid.UUID, page, limit int) (domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repo.FindByRenterID(ctx, renterID, page, limit)
	if err != nil {
		return domain.PaginatedResult[BookingDTO]{}, fmt.Errorf("failed to list renter bookings: %w", err)
	}
	return domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit), nil
}

// ListOwnerBookings returns bookings on listings owned by ownerID.
func (s *BookingService) ListOwnerBookings(ctx context.Context, ownerID uuid.UUID, page, limit int) (domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repo.FindByOwnerID(ctx, ownerID, page, limit)
	if err != nil {
		return domain.PaginatedResult[BookingDTO]{}, fmt.Errorf("failed to list owner bookings: %w", err)
	}
	return domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit), nil
}

// ListAllBookings returns all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) (domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return domain.PaginatedResult[BookingDTO]{}, fmt.Errorf("failed to list bookings: %w", err)
	}
	return domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit), nil
}

// GetBookingStats returns booking counts by status (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return &BookingStatsDTO{Total: total, ByStatus: counts}, nil
}

// GetAuditTrail returns the transition history of a booking.
func (s *BookingService) GetAuditTrail(ctx context.Context, bookingID, userID uuid.UUID, isAdmin bool) ([]AuditEventDTO, error) {
	if _, err := s.GetBooking(ctx, bookingID, userID, isAdmin); err != nil {
		return nil, err
	}
	events, err := s.auditRepo.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit trail: %w", err)
	}
	dtos := make([]AuditEventDTO, len(events))
	for i, e := range events {
		dtos[i] = AuditEventDTO{
			ID:         e.ID,
			BookingID:  e.BookingID,
			From:       string(e.From),
			To:         string(e.To),
			ActorID:    e.ActorID,
			ActorRole:  string(e.ActorRole),
			Reason:     e.Reason,
			Metadata:   e.Metadata,
			OccurredAt: e.OccurredAt,
		}
	}
	return dtos, nil
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:                  bk.ID(),
		ListingID:           bk.ListingID(),
		RenterID:            bk.RenterID(),
		OwnerID:             bk.OwnerID(),
		Status:              string(bk.Status()),
		DamageStatus:        string(bk.DamageStatus()),
		StartDate:           bk.StartDate(),
		EndDate:             bk.EndDate(),
		PickedUpAt:          bk.PickedUpAt(),
		ReturnedAt:          bk.ReturnedAt(),
		Fees:                bk.Fees(),
		Currency:            domain.CurrencyAUD,
		Insurance:           bk.Insurance(),
		Policy:              bk.Policy(),
		EngineHoursAtPickup: bk.EngineHoursAtPickup(),
		EngineHoursAtReturn: bk.EngineHoursAtReturn(),
		EngineHoursUsed:     bk.EngineHoursUsed(),
		PaymentSucceeded:    bk.PaymentSucceeded(),
		InspectionComplete:  bk.InspectionComplete(),
		StatusReason:        bk.StatusReason(),
		Version:             bk.Version(),
		CreatedAt:           bk.CreatedAt(),
		UpdatedAt:           bk.UpdatedAt(),
	}
}
