package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	bookingDomain "github.com/rigshare/service-booking/internal/domain/booking"
)

// AuditEventModel is the GORM model for the booking_audit_events table.
type AuditEventModel struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	BookingID   uuid.UUID      `gorm:"type:uuid;not null;index"`
	FromStatus  string         `gorm:"type:varchar(40)"`
	ToStatus    string         `gorm:"type:varchar(40);not null"`
	ActorID     uuid.UUID      `gorm:"type:uuid;not null"`
	ActorRole   string         `gorm:"type:varchar(10);not null"`
	Reason      string         `gorm:"type:text"`
	Metadata    datatypes.JSON `gorm:"type:jsonb"`
	OccurredAt  time.Time      `gorm:"not null;index"`
	PublishedAt *time.Time     `gorm:"index"`
}

// TableName sets the table name.
func (AuditEventModel) TableName() string { return "booking_audit_events" }

// GormAuditEventRepository implements booking.AuditEventRepository using GORM.
type GormAuditEventRepository struct {
	db *gorm.DB
}

// NewGormAuditEventRepository creates a new GormAuditEventRepository.
func NewGormAuditEventRepository(db *gorm.DB) *GormAuditEventRepository {
	return &GormAuditEventRepository{db: db}
}

// Save stores a new event.
func (r *GormAuditEventRepository) Save(ctx context.Context, e bookingDomain.TransitionEvent) error {
	model, err := toAuditEventModel(e)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save audit event: %w", err)
	}
	return nil
}

// FindByBookingID returns a booking's events oldest first.
func (r *GormAuditEventRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]bookingDomain.TransitionEvent, error) {
	var models []AuditEventModel
	if err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("occurred_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find audit events: %w", err)
	}
	return toAuditEvents(models)
}

// FindUnpublished returns up to limit events never published, oldest first.
func (r *GormAuditEventRepository) FindUnpublished(ctx context.Context, limit int) ([]bookingDomain.TransitionEvent, error) {
	var models []AuditEventModel
	if err := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("occurred_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find unpublished audit events: %w", err)
	}
	return toAuditEvents(models)
}

// MarkPublished stamps published_at on the given event.
func (r *GormAuditEventRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Model(&AuditEventModel{}).
		Where("id = ?", id).
		Update("published_at", time.Now().UTC()).Error; err != nil {
		return fmt.Errorf("failed to mark audit event published: %w", err)
	}
	return nil
}

func toAuditEventModel(e bookingDomain.TransitionEvent) (*AuditEventModel, error) {
	var meta datatypes.JSON
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
		meta = datatypes.JSON(data)
	}
	return &AuditEventModel{
		ID:          e.ID,
		BookingID:   e.BookingID,
		FromStatus:  string(e.From),
		ToStatus:    string(e.To),
		ActorID:     e.ActorID,
		ActorRole:   string(e.ActorRole),
		Reason:      e.Reason,
		Metadata:    meta,
		OccurredAt:  e.OccurredAt,
		PublishedAt: e.PublishedAt,
	}, nil
}

func toAuditEvents(models []AuditEventModel) ([]bookingDomain.TransitionEvent, error) {
	events := make([]bookingDomain.TransitionEvent, len(models))
	for i, m := range models {
		var meta map[string]string
		if len(m.Metadata) > 0 {
			if err := json.Unmarshal(m.Metadata, &meta); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
			}
		}
		events[i] = bookingDomain.TransitionEvent{
			ID:          m.ID,
			BookingID:   m.BookingID,
			From:        bookingDomain.BookingStatus(m.FromStatus),
			To:          bookingDomain.BookingStatus(m.ToStatus),
			ActorID:     m.ActorID,
			ActorRole:   bookingDomain.ActorRole(m.ActorRole),
			Reason:      m.Reason,
			Metadata:    meta,
			OccurredAt:  m.OccurredAt,
			PublishedAt: m.PublishedAt,
		}
	}
	return events, nil
}
