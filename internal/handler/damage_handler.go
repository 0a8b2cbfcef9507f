package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/rigshare/service-booking/internal/application"
	"github.com/rigshare/service-booking/pkg/auth"
	"github.com/rigshare/service-booking/pkg/middleware"
	"github.com/rigshare/service-booking/pkg/response"
)

// DamageHandler handles damage reports filed by booking parties.
type DamageHandler struct {
	damage    *application.DamageService
	lifecycle *application.LifecycleService
}

// NewDamageHandler creates a new DamageHandler.
func NewDamageHandler(damage *application.DamageService, lifecycle *application.LifecycleService) *DamageHandler {
	return &DamageHandler{damage: damage, lifecycle: lifecycle}
}

// RegisterRoutes registers damage report routes.
func (h *DamageHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("/:id/damage-reports", h.FileReport)
		bookings.GET("/:id/damage-reports", h.ListReports)
	}

	reports := r.Group("/api/v1/damage-reports")
	reports.Use(authMW)
	{
		reports.GET("/:reportId", h.GetReport)
	}
}

// FileReport handles POST /api/v1/bookings/:id/damage-reports.
func (h *DamageHandler) FileReport(c *gin.Context) {
	bookingID, ok := parseID(c, "id", "booking ID")
	if !ok {
		return
	}
	userID, isAdmin, ok := currentUser(c)
	if !ok {
		return
	}

	var req application.FileDamageReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actor, err := h.lifecycle.ResolveActor(c.Request.Context(), bookingID, userID, isAdmin)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.damage.FileReport(c.Request.Context(), bookingID, actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListReports handles GET /api/v1/bookings/:id/damage-reports.
func (h *DamageHandler) ListReports(c *gin.Context) {
	bookingID, ok := parseID(c, "id", "booking ID")
	if !ok {
		return
	}
	userID, isAdmin, ok := currentUser(c)
	if !ok {
		return
	}

	actor, err := h.lifecycle.ResolveActor(c.Request.Context(), bookingID, userID, isAdmin)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.damage.ListReports(c.Request.Context(), bookingID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetReport handles GET /api/v1/damage-reports/:reportId.
func (h *DamageHandler) GetReport(c *gin.Context) {
	reportID, ok := parseID(c, "reportId", "report ID")
	if !ok {
		return
	}
	userID, isAdmin, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.damage.GetReport(c.Request.Context(), reportID, userID, isAdmin)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
