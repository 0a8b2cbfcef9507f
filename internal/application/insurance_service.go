package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/rigshare/service-booking/internal/domain/booking"
	listingDomain "github.com/rigshare/service-booking/internal/domain/listing"
	policyDomain "github.com/rigshare/service-booking/internal/domain/policy"
	"github.com/rigshare/service-booking/pkg/domain"
)

// PublishPolicyRequest is the admin request to publish a new policy version.
type PublishPolicyRequest struct {
	Title   string `json:"title"`
	Content string `json:"content" binding:"required"`
}

// PolicyDTO is the response representation of a policy version.
type PolicyDTO struct {
	ID          uuid.UUID  `json:"id"`
	Slug        string     `json:"slug"`
	Version     int        `json:"version"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// InsuranceService captures insurance and policy snapshots for new bookings
// and publishes policy versions.
type InsuranceService struct {
	policies policyDomain.Repository
	cache    PolicyCache
	slug     string
	logger   *zap.Logger
}

// NewInsuranceService creates a new InsuranceService.
func NewInsuranceService(policies policyDomain.Repository, cache PolicyCache, slug string, logger *zap.Logger) *InsuranceService {
	return &InsuranceService{policies: policies, cache: cache, slug: slug, logger: logger}
}

// ActivePolicy returns the currently published policy.
func (s *InsuranceService) ActivePolicy(ctx context.Context) (*PolicyDTO, error) {
	v, err := s.cache.Get(ctx, s.slug)
	if err != nil {
		return nil, err
	}
	result := toPolicyDTO(v)
	return &result, nil
}

// ValidateAcceptedPolicyVersion checks that the version the renter accepted
// is the one currently published.
func (s *InsuranceService) ValidateAcceptedPolicyVersion(ctx context.Context, accepted int) (*policyDomain.Version, error) {
	active, err := s.cache.Get(ctx, s.slug)
	if err != nil {
		return nil, err
	}
	if accepted != active.Version {
		return nil, domain.NewInvariantError(fmt.Sprintf(
			"accepted policy version %d does not match active policy version %d; reload and accept the current policy",
			accepted, active.Version))
	}
	return active, nil
}

// Snapshot copies the listing's insurance terms and stamps the accepted
// policy version after validating it. It is only called at booking creation.
func (s *InsuranceService) Snapshot(
	ctx context.Context,
	listing *listingDomain.Listing,
	accepted bookingDomain.PolicySnapshot,
) (bookingDomain.InsuranceSnapshot, bookingDomain.PolicySnapshot, error) {
	active, err := s.ValidateAcceptedPolicyVersion(ctx, accepted.VersionAccepted)
	if err != nil {
		return bookingDomain.InsuranceSnapshot{}, bookingDomain.PolicySnapshot{}, err
	}
	return listing.SnapshotInsurance(), bookingDomain.PolicySnapshot{
		VersionAccepted:              active.Version,
		OwnerTermsAccepted:           accepted.OwnerTermsAccepted,
		RenterResponsibilityAccepted: accepted.RenterResponsibilityAccepted,
	}, nil
}

// PublishPolicy publishes the next policy version and drops the cached one.
// Bookings keep the version they were created with.
func (s *InsuranceService) PublishPolicy(ctx context.Context, adminID uuid.UUID, req PublishPolicyRequest) (*PolicyDTO, error) {
	current, err := s.policies.FindActive(ctx, s.slug)
	if err != nil && !domain.IsKind(err, domain.KindNotFound) {
		return nil, err
	}

	next, err := policyDomain.NewPublishedVersion(s.slug, req.Title, req.Content, current, adminID)
	if err != nil {
		return nil, err
	}
	if err := s.policies.Publish(ctx, next); err != nil {
		s.logger.Error("failed to publish policy", zap.String("slug", s.slug), zap.Error(err))
		return nil, err
	}
	s.cache.Invalidate(s.slug)

	s.logger.Info("policy published",
		zap.String("slug", s.slug),
		zap.Int("version", next.Version),
		zap.String("admin_id", adminID.String()),
	)
	result := toPolicyDTO(next)
	return &result, nil
}

// ListPolicyVersions returns every version of the policy, newest first.
func (s *InsuranceService) ListPolicyVersions(ctx context.Context) ([]PolicyDTO, error) {
	versions, err := s.policies.ListVersions(ctx, s.slug)
	if err != nil {
		return nil, err
	}
	dtos := make([]PolicyDTO, len(versions))
	for i, v := range versions {
		dtos[i] = toPolicyDTO(v)
	}
	return dtos, nil
}

func toPolicyDTO(v *policyDomain.Version) PolicyDTO {
	return PolicyDTO{
		ID:          v.ID,
		Slug:        v.Slug,
		Version:     v.Version,
		Title:       v.Title,
		Content:     v.Content,
		Published:   v.Published,
		PublishedAt: v.PublishedAt,
	}
}
