package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	policyDomain "github.com/rigshare/service-booking/internal/domain/policy"
	"github.com/rigshare/service-booking/pkg/domain"
)

// PolicyVersionModel is the GORM model for the policy_versions table.
type PolicyVersionModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Slug        string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_policy_slug_version"`
	Version     int        `gorm:"not null;uniqueIndex:idx_policy_slug_version"`
	Title       string     `gorm:"type:varchar(200)"`
	Content     string     `gorm:"type:text;not null"`
	Published   bool       `gorm:"not null;default:false;index"`
	PublishedAt *time.Time `gorm:""`
	PublishedBy uuid.UUID  `gorm:"type:uuid"`
	CreatedAt   time.Time  `gorm:"not null"`
}

// TableName sets the table name.
func (PolicyVersionModel) TableName() string { return "policy_versions" }

// GormPolicyRepository implements policy.Repository using GORM.
type GormPolicyRepository struct {
	db *gorm.DB
}

// NewGormPolicyRepository creates a new GormPolicyRepository.
func NewGormPolicyRepository(db *gorm.DB) *GormPolicyRepository {
	return &GormPolicyRepository{db: db}
}

// FindActive returns the published version for slug.
func (r *GormPolicyRepository) FindActive(ctx context.Context, slug string) (*policyDomain.Version, error) {
	var model PolicyVersionModel
	if err := r.db.WithContext(ctx).
		Where("slug = ? AND published = ?", slug, true).
		Order("version DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Policy", slug)
		}
		return nil, fmt.Errorf("failed to find active policy: %w", err)
	}
	return toPolicyDomain(&model), nil
}

// Publish unpublishes the current version and inserts v in one transaction.
// The unique (slug, version) index rejects two admins racing to the same
// version number.
func (r *GormPolicyRepository) Publish(ctx context.Context, v *policyDomain.Version) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&PolicyVersionModel{}).
			Where("slug = ? AND published = ?", v.Slug, true).
			Update("published", false).Error; err != nil {
			return fmt.Errorf("failed to unpublish policy: %w", err)
		}
		model := toPolicyModel(v)
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("failed to insert policy version: %w", err)
		}
		return nil
	})
}

// ListVersions returns every version of slug, newest first.
func (r *GormPolicyRepository) ListVersions(ctx context.Context, slug string) ([]*policyDomain.Version, error) {
	var models []PolicyVersionModel
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).Order("version DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list policy versions: %w", err)
	}
	versions := make([]*policyDomain.Version, len(models))
	for i := range models {
		versions[i] = toPolicyDomain(&models[i])
	}
	return versions, nil
}

func toPolicyModel(v *policyDomain.Version) PolicyVersionModel {
	return PolicyVersionModel{
		ID:          v.ID,
		Slug:        v.Slug,
		Version:     v.Version,
		Title:       v.Title,
		Content:     v.Content,
		Published:   v.Published,
		PublishedAt: v.PublishedAt,
		PublishedBy: v.PublishedBy,
		CreatedAt:   v.CreatedAt,
	}
}

func toPolicyDomain(m *PolicyVersionModel) *policyDomain.Version {
	return &policyDomain.Version{
		ID:          m.ID,
		Slug:        m.Slug,
		Version:     m.Version,
		Title:       m.Title,
		Content:     m.Content,
		Published:   m.Published,
		PublishedAt: m.PublishedAt,
		PublishedBy: m.PublishedBy,
		CreatedAt:   m.CreatedAt,
	}
}
