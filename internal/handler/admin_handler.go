package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/rigshare/service-booking/internal/application"
	bookingDomain "github.com/rigshare/service-booking/internal/domain/booking"
	"github.com/rigshare/service-booking/pkg/auth"
	"github.com/rigshare/service-booking/pkg/middleware"
	"github.com/rigshare/service-booking/pkg/response"
)

// AdminBookingHandler handles admin HTTP requests: booking oversight,
// dispute and damage resolution, and policy publishing.
type AdminBookingHandler struct {
	bookings  *application.BookingService
	lifecycle *application.LifecycleService
	damage    *application.DamageService
	insurance *application.InsuranceService
}

// NewAdminBookingHandler creates a new AdminBookingHandler.
func NewAdminBookingHandler(
	bookings *application.BookingService,
	lifecycle *application.LifecycleService,
	damage *application.DamageService,
	insurance *application.InsuranceService,
) *AdminBookingHandler {
	return &AdminBookingHandler{bookings: bookings, lifecycle: lifecycle, damage: damage, insurance: insurance}
}

type resolutionBody struct {
	Resolution string `json:"resolution" binding:"required"`
}

// RegisterRoutes registers admin booking routes.
func (h *AdminBookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/stats/bookings", h.BookingStats)
		admin.POST("/bookings/:id/resolve-dispute", h.ResolveDispute)
		admin.POST("/bookings/:id/return-to-inspection", h.ReturnToInspection)
		admin.POST("/damage-reports/:reportId/review", h.StartReview)
		admin.POST("/damage-reports/:reportId/resolve", h.ResolveReport)
		admin.GET("/policies", h.ListPolicyVersions)
		admin.POST("/policies", h.PublishPolicy)
	}
}

func adminActor(c *gin.Context) (application.Actor, bool) {
	userID, _, ok := currentUser(c)
	if !ok {
		return application.Actor{}, false
	}
	return application.Actor{ID: userID, Role: bookingDomain.ActorAdmin}, true
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminBookingHandler) ListBookings(c *gin.Context) {
	page, limit := parsePagination(c)

	result, err := h.bookings.ListAllBookings(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminBookingHandler) BookingStats(c *gin.Context) {
	stats, err := h.bookings.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// ResolveDispute handles POST /api/v1/admin/bookings/:id/resolve-dispute.
func (h *AdminBookingHandler) ResolveDispute(c *gin.Context) {
	bookingID, ok := parseID(c, "id", "booking ID")
	if !ok {
		return
	}
	actor, ok := adminActor(c)
	if !ok {
		return
	}
	var body resolutionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	writeTransition(c, h.lifecycle.ResolveDispute(c.Request.Context(), bookingID, actor, body.Resolution))
}

// ReturnToInspection handles POST /api/v1/admin/bookings/:id/return-to-inspection.
func (h *AdminBookingHandler) ReturnToInspection(c *gin.Context) {
	bookingID, ok := parseID(c, "id", "booking ID")
	if !ok {
		return
	}
	actor, ok := adminActor(c)
	if !ok {
		return
	}
	var body reasonBody
	if !bindOptionalJSON(c, &body) {
		return
	}
	writeTransition(c, h.lifecycle.ReturnToInspection(c.Request.Context(), bookingID, actor, body.Reason))
}

// StartReview handles POST /api/v1/admin/damage-reports/:reportId/review.
func (h *AdminBookingHandler) StartReview(c *gin.Context) {
	reportID, ok := parseID(c, "reportId", "report ID")
	if !ok {
		return
	}
	actor, ok := adminActor(c)
	if !ok {
		return
	}

	result, err := h.damage.StartReview(c.Request.Context(), reportID, actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ResolveReport handles POST /api/v1/admin/damage-reports/:reportId/resolve.
func (h *AdminBookingHandler) ResolveReport(c *gin.Context) {
	reportID, ok := parseID(c, "reportId", "report ID")
	if !ok {
		return
	}
	actor, ok := adminActor(c)
	if !ok {
		return
	}

	var req application.ResolveDamageReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.damage.ResolveReport(c.Request.Context(), reportID, actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListPolicyVersions handles GET /api/v1/admin/policies.
func (h *AdminBookingHandler) ListPolicyVersions(c *gin.Context) {
	result, err := h.insurance.ListPolicyVersions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// PublishPolicy handles POST /api/v1/admin/policies.
func (h *AdminBookingHandler) PublishPolicy(c *gin.Context) {
	actor, ok := adminActor(c)
	if !ok {
		return
	}

	var req application.PublishPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.insurance.PublishPolicy(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}
