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

// InsuranceTermsRequest carries a listing's insurance fields.
type InsuranceTermsRequest struct {
	Mode                      string           `json:"mode" binding:"required"`
	Notes                     string           `json:"notes"`
	EstimatedReplacementValue *decimal.Decimal `json:"estimated_replacement_value"`
	DamageExcessNotes         string           `json:"damage_excess_notes"`
}

// CreateListingRequest is the request DTO for creating a listing.
type CreateListingRequest struct {
	Title       string                `json:"title" binding:"required"`
	Category    string                `json:"category"`
	DailyRate   decimal.Decimal       `json:"daily_rate" binding:"required"`
	DeliveryFee decimal.Decimal       `json:"delivery_fee"`
	BondAmount  decimal.Decimal       `json:"bond_amount"`
	Insurance   InsuranceTermsRequest `json:"insurance" binding:"required"`
}

// ListingDTO is the API response representation of a listing.
type ListingDTO struct {
	ID                        uuid.UUID        `json:"id"`
	OwnerID                   uuid.UUID        `json:"owner_id"`
	Title                     string           `json:"title"`
	Category                  string           `json:"category,omitempty"`
	DailyRate                 decimal.Decimal  `json:"daily_rate"`
	DeliveryFee               decimal.Decimal  `json:"delivery_fee"`
	BondAmount                decimal.Decimal  `json:"bond_amount"`
	InsuranceMode             string           `json:"insurance_mode"`
	InsuranceNotes            string           `json:"insurance_notes,omitempty"`
	EstimatedReplacementValue *decimal.Decimal `json:"estimated_replacement_value,omitempty"`
	DamageExcessNotes         string           `json:"damage_excess_notes,omitempty"`
	Status                    string           `json:"status"`
	CreatedAt                 time.Time        `json:"created_at"`
	UpdatedAt                 time.Time        `json:"updated_at"`
}

// ListingService implements use cases for equipment listings.
type ListingService struct {
	repo   listingDomain.ListingRepository
	logger *zap.Logger
}

// NewListingService creates a new ListingService.
func NewListingService(repo listingDomain.ListingRepository, logger *zap.Logger) *ListingService {
	return &ListingService{repo: repo, logger: logger}
}

func (r InsuranceTermsRequest) toTerms() listingDomain.InsuranceTerms {
	return listingDomain.InsuranceTerms{
		Mode:                      bookingDomain.InsuranceMode(r.Mode),
		Notes:                     r.Notes,
		EstimatedReplacementValue: r.EstimatedReplacementValue,
		DamageExcessNotes:         r.DamageExcessNotes,
	}
}

// CreateListing creates a listing owned by ownerID.
func (s *ListingService) CreateListing(ctx context.Context, ownerID uuid.UUID, req CreateListingRequest) (*ListingDTO, error) {
	l, err := listingDomain.NewListing(listingDomain.NewListingParams{
		OwnerID:     ownerID,
		Title:       req.Title,
		Category:    req.Category,
		DailyRate:   req.DailyRate,
		DeliveryFee: req.DeliveryFee,
		BondAmount:  req.BondAmount,
		Insurance:   req.Insurance.toTerms(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, l); err != nil {
		s.logger.Error("failed to create listing", zap.Error(err))
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	s.logger.Info("listing created",
		zap.String("listing_id", l.ID().String()),
		zap.String("owner_id", ownerID.String()),
	)
	result := toListingDTO(l)
	return &result, nil
}

// GetListing returns a listing by ID.
func (s *ListingService) GetListing(ctx context.Context, listingID uuid.UUID) (*ListingDTO, error) {
	l, err := s.repo.FindByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	result := toListingDTO(l)
	return &result, nil
}

// GetMyListings returns every listing owned by ownerID.
func (s *ListingService) GetMyListings(ctx context.Context, ownerID uuid.UUID) ([]ListingDTO, error) {
	listings, err := s.repo.FindByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get listings: %w", err)
	}
	dtos := make([]ListingDTO, len(listings))
	for i, l := range listings {
		dtos[i] = toListingDTO(l)
	}
	return dtos, nil
}

// UpdateInsurance replaces a listing's insurance terms. Bookings already
// made keep their snapshot.
func (s *ListingService) UpdateInsurance(ctx context.Context, ownerID, listingID uuid.UUID, req InsuranceTermsRequest) (*ListingDTO, error) {
	l, err := s.ownedListing(ctx, ownerID, listingID)
	if err != nil {
		return nil, err
	}
	if err := l.UpdateInsurance(req.toTerms()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}
	result := toListingDTO(l)
	return &result, nil
}

// ArchiveListing hides a listing from new bookings.
func (s *ListingService) ArchiveListing(ctx context.Context, ownerID, listingID uuid.UUID) error {
	l, err := s.ownedListing(ctx, ownerID, listingID)
	if err != nil {
		return err
	}
	l.Archive()
	if err := s.repo.Update(ctx, l); err != nil {
		return fmt.Errorf("failed to archive listing: %w", err)
	}
	s.logger.Info("listing archived", zap.String("listing_id", listingID.String()))
	return nil
}

func (s *ListingService) ownedListing(ctx context.Context, ownerID, listingID uuid.UUID) (*listingDomain.Listing, error) {
	l, err := s.repo.FindByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !l.IsOwnedBy(ownerID) {
		return nil, domain.NewForbiddenError("you do not own this listing")
	}
	return l, nil
}

func toListingDTO(l *listingDomain.Listing) ListingDTO {
	ins := l.Insurance()
	return ListingDTO{
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
		CreatedAt:                 l.CreatedAt(),
		UpdatedAt:                 l.UpdatedAt(),
	}
}
