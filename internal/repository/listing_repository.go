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
	listingDomain "github.com/rigshare/service-booking/internal/domain/listing"
	"github.com/rigshare/service-booking/pkg/domain"
)

// ListingModel is the GORM model for the listings table.
type ListingModel struct {
	ID                        uuid.UUID        `gorm:"type:uuid;primaryKey"`
	OwnerID                   uuid.UUID        `gorm:"type:uuid;not null;index"`
	Title                     string           `gorm:"type:varchar(200);not null"`
	Category                  string           `gorm:"type:varchar(100)"`
	DailyRate                 decimal.Decimal  `gorm:"type:numeric(12,2);not null"`
	DeliveryFee               decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0"`
	BondAmount                decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0"`
	InsuranceMode             string           `gorm:"type:varchar(30);not null"`
	InsuranceNotes            string           `gorm:"type:text"`
	EstimatedReplacementValue *decimal.Decimal `gorm:"type:numeric(12,2)"`
	DamageExcessNotes         string           `gorm:"type:text"`
	Status                    string           `gorm:"type:varchar(20);not null;default:'active'"`
	Version                   int64            `gorm:"not null;default:1"`
	CreatedAt                 time.Time        `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt                 time.Time        `gorm:"type:timestamptz;not null;default:now()"`
}

func (ListingModel) TableName() string { return "listings" }

// GormListingRepository implements ListingRepository using GORM.
type GormListingRepository struct {
	db *gorm.DB
}

func NewGormListingRepository(db *gorm.DB) *GormListingRepository {
	return &GormListingRepository{db: db}
}

func (r *GormListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*listingDomain.Listing, error) {
	var model ListingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Listing", id.String())
		}
		return nil, err
	}
	return toListingDomain(&model), nil
}

func (r *GormListingRepository) FindByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*listingDomain.Listing, error) {
	var models []ListingModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	listings := make([]*listingDomain.Listing, len(models))
	for i := range models {
		listings[i] = toListingDomain(&models[i])
	}
	return listings, nil
}

func (r *GormListingRepository) Save(ctx context.Context, l *listingDomain.Listing) error {
	model := toListingModel(l)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Update writes a listing guarded by its previous version.
func (r *GormListingRepository) Update(ctx context.Context, l *listingDomain.Listing) error {
	model := toListingModel(l)
	result := r.db.WithContext(ctx).
		Model(&ListingModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version-1).
		Updates(map[string]interface{}{
			"title":                       model.Title,
			"category":                    model.Category,
			"daily_rate":                  model.DailyRate,
			"delivery_fee":                model.DeliveryFee,
			"bond_amount":                 model.BondAmount,
			"insurance_mode":              model.InsuranceMode,
			"insurance_notes":             model.InsuranceNotes,
			"estimated_replacement_value": model.EstimatedReplacementValue,
			"damage_excess_notes":         model.DamageExcessNotes,
			"status":                      model.Status,
			"version":                     model.Version,
			"updated_at":                  model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update listing: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("listing was modified by another transaction")
	}
	return nil
}

func toListingModel(l *listingDomain.Listing) ListingModel {
	ins := l.Insurance()
	return ListingModel{
		ID:                        l.ID(),
		OwnerID:                   l.OwnerID(),
		Title:                     l.Title(),
		Category:                  l.Category(),
		DailyRate:                 l.DailyRate(),
		DeliveryFee:               l.DeliveryFee(),
		BondAmount:                l.BondAmount(),
		InsuranceMode:             string(ins.Mode),
		InsuranceNotes:            ins.Notes,
		EstimatedReplacementValue: ins.EstimatedReplacementValue,
		DamageExcessNotes:         ins.DamageExcessNotes,
		Status:                    string(l.Status()),
		Version:                   l.Version(),
		CreatedAt:                 l.CreatedAt(),
		UpdatedAt:                 l.UpdatedAt(),
	}
}

func toListingDomain(m *ListingModel) *listingDomain.Listing {
	return listingDomain.Reconstruct(
		m.ID, m.OwnerID,
		m.Title, m.Category,
		m.DailyRate, m.DeliveryFee, m.BondAmount,
		listingDomain.InsuranceTerms{
			Mode:                      bookingDomain.InsuranceMode(m.InsuranceMode),
			Notes:                     m.InsuranceNotes,
			EstimatedReplacementValue: m.EstimatedReplacementValue,
			DamageExcessNotes:         m.DamageExcessNotes,
		},
		listingDomain.ListingStatus(m.Status),
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	)
}
