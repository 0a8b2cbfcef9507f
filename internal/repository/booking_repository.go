package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	bookingDomain "github.com/rigshare/service-booking/internal/domain/booking"
	"github.com/rigshare/service-booking/pkg/domain"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ListingID uuid.UUID `gorm:"type:uuid;index;not null"`
	RenterID  uuid.UUID `gorm:"type:uuid;index;not null"`
	OwnerID   uuid.UUID `gorm:"type:uuid;index;not null"`
	StartDate time.Time `gorm:"not null"`
	EndDate   time.Time `gorm:"not null"`

	PickedUpAt   *time.Time `gorm:""`
	ReturnedAt   *time.Time `gorm:""`
	Status       string     `gorm:"not null;size:40;index"`
	DamageStatus string     `gorm:"not null;size:40;default:'NONE'"`
	StatusReason string     `gorm:"size:1000"`

	RentalCost        decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	DeliveryFee       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	BondAmount        decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	RentalSubtotal    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	PlatformFeeRate   decimal.Decimal `gorm:"type:numeric(6,4);not null"`
	PlatformFee       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	OwnerPayoutAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	TotalCharged      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency          string          `gorm:"not null;size:3;default:'AUD'"`

	InsuranceMode                      string           `gorm:"not null;size:30"`
	InsuranceNotes                     string           `gorm:"type:text"`
	InsuranceEstimatedReplacementValue *decimal.Decimal `gorm:"type:numeric(12,2)"`
	InsuranceDamageExcessNotes         string           `gorm:"type:text"`

	PolicyVersionAccepted        int  `gorm:"not null"`
	OwnerTermsAccepted           bool `gorm:"not null"`
	RenterResponsibilityAccepted bool `gorm:"not null"`

	EngineHoursAtPickup *decimal.Decimal `gorm:"type:numeric(10,1)"`
	EngineHoursAtReturn *decimal.Decimal `gorm:"type:numeric(10,1)"`
	EngineHoursUsed     *decimal.Decimal `gorm:"type:numeric(10,1)"`

	PaymentSucceeded   bool      `gorm:"not null;default:false"`
	InspectionComplete bool      `gorm:"not null;default:false"`
	Version            int64     `gorm:"not null;default:1"`
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByRenterID retrieves bookings made by a renter with pagination.
func (r *GormBookingRepository) FindByRenterID(ctx context.Context, renterID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "renter_id = ?", renterID, page, limit)
}

// FindByOwnerID retrieves bookings on an owner's listings with pagination.
func (r *GormBookingRepository) FindByOwnerID(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "owner_id = ?", ownerID, page, limit)
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "", nil, page, limit)
}

func (r *GormBookingRepository) findPage(ctx context.Context, where string, arg interface{}, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if where == "" {
			return db
		}
		return db.Where(where, arg)
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Scopes(scope).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var results []statusCount
	if err := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count bookings by status: %w", err)
	}

	counts := make(map[string]int64, len(results))
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// Update writes the mutable columns of a booking. The row must still carry
// the previous version and expectedStatus, so a concurrent transition on the
// same booking makes this call fail with a conflict.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking, expectedStatus bookingDomain.BookingStatus) error {
	model := toBookingModel(bk)

	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ? AND status = ?", model.ID, expectedVersion, string(expectedStatus)).
		Updates(map[string]interface{}{
			"status":                 model.Status,
			"damage_status":          model.DamageStatus,
			"status_reason":          model.StatusReason,
			"picked_up_at":           model.PickedUpAt,
			"returned_at":            model.ReturnedAt,
			"engine_hours_at_pickup": model.EngineHoursAtPickup,
			"engine_hours_at_return": model.EngineHoursAtReturn,
			"engine_hours_used":      model.EngineHoursUsed,
			"payment_succeeded":      model.PaymentSucceeded,
			"inspection_complete":    model.InspectionComplete,
			"version":                model.Version,
			"updated_at":             model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking status changed concurrently; reload and retry")
	}
	return nil
}

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	fees := bk.Fees()
	ins := bk.Insurance()
	pol := bk.Policy()
	return &BookingModel{
		ID:           bk.ID(),
		ListingID:    bk.ListingID(),
		RenterID:     bk.RenterID(),
		OwnerID:      bk.OwnerID(),
		StartDate:    bk.StartDate(),
		EndDate:      bk.EndDate(),
		PickedUpAt:   bk.PickedUpAt(),
		ReturnedAt:   bk.ReturnedAt(),
		Status:       string(bk.Status()),
		DamageStatus: string(bk.DamageStatus()),
		StatusReason: bk.StatusReason(),

		RentalCost:        fees.RentalCost,
		DeliveryFee:       fees.DeliveryFee,
		BondAmount:        fees.BondAmount,
		RentalSubtotal:    fees.RentalSubtotal,
		PlatformFeeRate:   fees.PlatformFeeRate,
		PlatformFee:       fees.PlatformFee,
		OwnerPayoutAmount: fees.OwnerPayoutAmount,
		TotalCharged:      fees.TotalCharged,
		Currency:          domain.CurrencyAUD,

		InsuranceMode:                      string(ins.Mode),
		InsuranceNotes:                     ins.Notes,
		InsuranceEstimatedReplacementValue: ins.EstimatedReplacementValue,
		InsuranceDamageExcessNotes:         ins.DamageExcessNotes,

		PolicyVersionAccepted:        pol.VersionAccepted,
		OwnerTermsAccepted:           pol.OwnerTermsAccepted,
		RenterResponsibilityAccepted: pol.RenterResponsibilityAccepted,

		EngineHoursAtPickup: bk.EngineHoursAtPickup(),
		EngineHoursAtReturn: bk.EngineHoursAtReturn(),
		EngineHoursUsed:     bk.EngineHoursUsed(),

		PaymentSucceeded:   bk.PaymentSucceeded(),
		InspectionComplete: bk.InspectionComplete(),
		Version:            bk.Version(),
		CreatedAt:          bk.CreatedAt(),
		UpdatedAt:          bk.UpdatedAt(),
	}
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}
	damageStatus, err := bookingDomain.ParseDamageStatus(m.DamageStatus)
	if err != nil {
		return nil, err
	}

	return bookingDomain.ReconstructBooking(bookingDomain.ReconstructParams{
		ID:           m.ID,
		ListingID:    m.ListingID,
		RenterID:     m.RenterID,
		OwnerID:      m.OwnerID,
		StartDate:    m.StartDate,
		EndDate:      m.EndDate,
		PickedUpAt:   m.PickedUpAt,
		ReturnedAt:   m.ReturnedAt,
		Status:       status,
		DamageStatus: damageStatus,
		Fees: bookingDomain.FeeBreakdown{
			RentalCost:        m.RentalCost,
			DeliveryFee:       m.DeliveryFee,
			BondAmount:        m.BondAmount,
			RentalSubtotal:    m.RentalSubtotal,
			PlatformFeeRate:   m.PlatformFeeRate,
			PlatformFee:       m.PlatformFee,
			OwnerPayoutAmount: m.OwnerPayoutAmount,
			TotalCharged:      m.TotalCharged,
		},
		Insurance: bookingDomain.InsuranceSnapshot{
			Mode:                      bookingDomain.InsuranceMode(m.InsuranceMode),
			Notes:                     m.InsuranceNotes,
			EstimatedReplacementValue: m.InsuranceEstimatedReplacementValue,
			DamageExcessNotes:         m.InsuranceDamageExcessNotes,
		},
		Policy: bookingDomain.PolicySnapshot{
			VersionAccepted:              m.PolicyVersionAccepted,
			OwnerTermsAccepted:           m.OwnerTermsAccepted,
			RenterResponsibilityAccepted: m.RenterResponsibilityAccepted,
		},
		EngineHoursAtPickup: m.EngineHoursAtPickup,
		EngineHoursAtReturn: m.EngineHoursAtReturn,
		EngineHoursUsed:     m.EngineHoursUsed,
		PaymentSucceeded:    m.PaymentSucceeded,
		InspectionComplete:  m.InspectionComplete,
		StatusReason:        m.StatusReason,
		Version:             m.Version,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}), nil
}
