package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/rigshare/service-booking/internal/application"
	"github.com/rigshare/service-booking/pkg/auth"
	"github.com/rigshare/service-booking/pkg/middleware"
	"github.com/rigshare/service-booking/pkg/response"
)

// ListingHandler handles HTTP requests for equipment listings and the
// active Insurance & Damage policy renters must accept.
type ListingHandler struct {
	listings  *application.ListingService
	insurance *application.InsuranceService
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(listings *application.ListingService, insurance *application.InsuranceService) *ListingHandler {
	return &ListingHandler{listings: listings, insurance: insurance}
}

// RegisterRoutes registers all listing routes.
func (h *ListingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	listings := r.Group("/api/v1/listings")
	listings.Use(authMW)
	{
		listings.POST("", h.CreateListing)
		listings.GET("/mine", h.GetMyListings)
		listings.GET("/:id", h.GetListing)
		listings.PUT("/:id/insurance", h.UpdateInsurance)
		listings.POST("/:id/archive", h.ArchiveListing)
	}

	r.GET("/api/v1/policies/active", authMW, h.GetActivePolicy)
}

// CreateListing handles POST /api/v1/listings.
func (h *ListingHandler) CreateListing(c *gin.Context) {
	ownerID, _, ok := currentUser(c)
	if !ok {
		return
	}

	var req application.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.listings.CreateListing(c.Request.Context(), ownerID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetMyListings handles GET /api/v1/listings/mine.
func (h *ListingHandler) GetMyListings(c *gin.Context) {
	ownerID, _, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.listings.GetMyListings(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetListing handles GET /api/v1/listings/:id.
func (h *ListingHandler) GetListing(c *gin.Context) {
	listingID, ok := parseID(c, "id", "listing ID")
	if !ok {
		return
	}

	result, err := h.listings.GetListing(c.Request.Context(), listingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateInsurance handles PUT /api/v1/listings/:id/insurance.
func (h *ListingHandler) UpdateInsurance(c *gin.Context) {
	listingID, ok := parseID(c, "id", "listing ID")
	if !ok {
		return
	}
	ownerID, _, ok := currentUser(c)
	if !ok {
		return
	}

	var req application.InsuranceTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.listings.UpdateInsurance(c.Request.Context(), ownerID, listingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ArchiveListing handles POST /api/v1/listings/:id/archive.
func (h *ListingHandler) ArchiveListing(c *gin.Context) {
	listingID, ok := parseID(c, "id", "listing ID")
	if !ok {
		return
	}
	ownerID, _, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.listings.ArchiveListing(c.Request.Context(), ownerID, listingID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "listing archived"})
}

// GetActivePolicy handles GET /api/v1/policies/active.
func (h *ListingHandler) GetActivePolicy(c *gin.Context) {
	result, err := h.insurance.ActivePolicy(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
