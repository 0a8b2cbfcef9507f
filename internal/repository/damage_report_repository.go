package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	bookingDomain "github.com/rigshare/service-booking/internal/domain/booking"
	damageDomain "github.com/rigshare/service-booking/internal/domain/damage"
	"github.com/rigshare/service-booking/pkg/domain"
)

// DamageReportModel is the GORM model for the damage_reports table.
type DamageReportModel struct {
	ID                  uuid.UUID        `gorm:"type:uuid;primaryKey"`
	BookingID           uuid.UUID        `gorm:"type:uuid;not null;index"`
	ReporterID          uuid.UUID        `gorm:"type:uuid;not null"`
	ReporterRole        string           `gorm:"type:varchar(10);not null"`
	Summary             string           `gorm:"type:varchar(200);not null"`
	Description         string           `gorm:"type:text"`
	Severity            string           `gorm:"type:varchar(20);not null"`
	Status              string           `gorm:"type:varchar(30);not null;index"`
	PhotoURLs           datatypes.JSON   `gorm:"type:jsonb"`
	EstimatedRepairCost *decimal.Decimal `gorm:"type:numeric(12,2)"`
	BondAmountApplied   *decimal.Decimal `gorm:"type:numeric(12,2)"`
	ResolutionNotes     string           `gorm:"type:text"`
	ReviewerID          *uuid.UUID       `gorm:"type:uuid"`
	ReviewedAt          *time.Time       `gorm:""`
	ResolvedAt          *time.Time       `gorm:""`
	CreatedAt           time.Time        `gorm:"not null"`
	UpdatedAt           time.Time        `gorm:"not null"`
}

// TableName sets the table name.
func (DamageReportModel) TableName() string { return "damage_reports" }

// GormDamageReportRepository implements damage.ReportRepository using GORM.
type GormDamageReportRepository struct {
	db *gorm.DB
}

// NewGormDamageReportRepository creates a new GormDamageReportRepository.
func NewGormDamageReportRepository(db *gorm.DB) *GormDamageReportRepository {
	return &GormDamageReportRepository{db: db}
}

// Save persists a new damage report and, when bw is set, the booking's
// damage status in the same transaction.
func (r *GormDamageReportRepository) Save(ctx context.Context, report *damageDomain.Report, bw *damageDomain.BookingWrite) error {
	model, err := toDamageReportModel(report)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to save damage report: %w", err)
		}
		return applyBookingWrite(ctx, tx, bw)
	})
}

// Update writes the review and resolution fields of a report and, when bw
// is set, the booking's damage status in the same transaction.
func (r *GormDamageReportRepository) Update(ctx context.Context, report *damageDomain.Report, bw *damageDomain.BookingWrite) error {
	model, err := toDamageReportModel(report)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&DamageReportModel{}).
			Where("id = ?", model.ID).
			Updates(map[string]interface{}{
				"status":              model.Status,
				"bond_amount_applied": model.BondAmountApplied,
				"resolution_notes":    model.ResolutionNotes,
				"reviewer_id":         model.ReviewerID,
				"reviewed_at":         model.ReviewedAt,
				"resolved_at":         model.ResolvedAt,
				"updated_at":          model.UpdatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update damage report: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.NewNotFoundError("DamageReport", model.ID.String())
		}
		return applyBookingWrite(ctx, tx, bw)
	})
}

func applyBookingWrite(ctx context.Context, tx *gorm.DB, bw *damageDomain.BookingWrite) error {
	if bw == nil {
		return nil
	}
	return NewGormBookingRepository(tx).Update(ctx, bw.Booking, bw.ExpectedStatus)
}

// FindByID returns a single report by ID.
func (r *GormDamageReportRepository) FindByID(ctx context.Context, id uuid.UUID) (*damageDomain.Report, error) {
	var model DamageReportModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("DamageReport", id.String())
		}
		return nil, fmt.Errorf("failed to find damage report: %w", err)
	}
	return toDamageReportDomain(&model)
}

// FindByBookingID returns every report filed against a booking, oldest first.
func (r *GormDamageReportRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*damageDomain.Report, error) {
	var models []DamageReportModel
	if err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find damage reports: %w", err)
	}

	reports := make([]*damageDomain.Report, len(models))
	for i := range models {
		rep, err := toDamageReportDomain(&models[i])
		if err != nil {
			return nil, err
		}
		reports[i] = rep
	}
	return reports, nil
}

func toDamageReportModel(rep *damageDomain.Report) (*DamageReportModel, error) {
	photos := rep.PhotoURLs()
	if photos == nil {
		photos = []string{}
	}
	photosJSON, err := json.Marshal(photos)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal photo URLs: %w", err)
	}

	return &DamageReportModel{
		ID:                  rep.ID(),
		BookingID:           rep.BookingID(),
		ReporterID:          rep.ReporterID(),
		ReporterRole:        string(rep.ReporterRole()),
		Summary:             rep.Summary(),
		Description:         rep.Description(),
		Severity:            string(rep.Severity()),
		Status:              string(rep.Status()),
		PhotoURLs:           datatypes.JSON(photosJSON),
		EstimatedRepairCost: rep.EstimatedRepairCost(),
		BondAmountApplied:   rep.BondAmountApplied(),
		ResolutionNotes:     rep.ResolutionNotes(),
		ReviewerID:          rep.ReviewerID(),
		ReviewedAt:          rep.ReviewedAt(),
		ResolvedAt:          rep.ResolvedAt(),
		CreatedAt:           rep.CreatedAt(),
		UpdatedAt:           rep.UpdatedAt(),
	}, nil
}

func toDamageReportDomain(m *DamageReportModel) (*damageDomain.Report, error) {
	var photos []string
	if len(m.PhotoURLs) > 0 {
		if err := json.Unmarshal(m.PhotoURLs, &photos); err != nil {
			return nil, fmt.Errorf("failed to unmarshal photo URLs: %w", err)
		}
	}
	severity, err := damageDomain.ParseSeverity(m.Severity)
	if err != nil {
		return nil, err
	}
	status, err := damageDomain.ParseReportStatus(m.Status)
	if err != nil {
		return nil, err
	}

	return damageDomain.Reconstruct(damageDomain.ReconstructParams{
		ID:                  m.ID,
		BookingID:           m.BookingID,
		ReporterID:          m.ReporterID,
		ReporterRole:        bookingDomain.ActorRole(m.ReporterRole),
		Summary:             m.Summary,
		Description:         m.Description,
		Severity:            severity,
		Status:              status,
		PhotoURLs:           photos,
		EstimatedRepairCost: m.EstimatedRepairCost,
		BondAmountApplied:   m.BondAmountApplied,
		ResolutionNotes:     m.ResolutionNotes,
		ReviewerID:          m.ReviewerID,
		CreatedAt:           m.CreatedAt,
		ReviewedAt:          m.ReviewedAt,
		ResolvedAt:          m.ResolvedAt,
		UpdatedAt:           m.UpdatedAt,
	}), nil
}
