package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rigshare/service-booking/internal/application"
	"github.com/rigshare/service-booking/pkg/auth"
	"github.com/rigshare/service-booking/pkg/domain"
	"github.com/rigshare/service-booking/pkg/middleware"
	"github.com/rigshare/service-booking/pkg/response"
)

// BookingHandler handles HTTP requests for bookings and their lifecycle.
type BookingHandler struct {
	bookings  *application.BookingService
	lifecycle *application.LifecycleService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookings *application.BookingService, lifecycle *application.LifecycleService) *BookingHandler {
	return &BookingHandler{bookings: bookings, lifecycle: lifecycle}
}

type reasonBody struct {
	Reason string `json:"reason"`
}

type readyBody struct {
	PaymentComplete bool `json:"payment_complete"`
}

type engineHoursBody struct {
	EngineHours *decimal.Decimal `json:"engine_hours"`
	Notes       string           `json:"notes"`
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	bookings := r.Group("/api/v1/bookings")
	bookings.Use(middleware.AuthMiddleware(jwtManager))
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.GET("/:id/audit", h.GetAuditTrail)
		bookings.GET("/:id/actions", h.GetAvailableActions)
		bookings.POST("/:id/accept", h.AcceptBooking)
		bookings.POST("/:id/decline", h.DeclineBooking)
		bookings.POST("/:id/cancel", h.CancelBooking)
		bookings.POST("/:id/ready", h.MarkReadyForPickup)
		bookings.POST("/:id/pickup", h.StartRental)
		bookings.POST("/:id/return", h.MarkReturned)
		bookings.POST("/:id/inspection", h.CompleteInspection)
		bookings.POST("/:id/complete", h.CompleteBooking)
		bookings.POST("/:id/dispute", h.RaiseDispute)
	}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.bookings.CreateBooking(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListBookings handles GET /api/v1/bookings. ?as=owner lists bookings on the
// caller's listings; the default lists bookings the caller made.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	var (
		result domain.PaginatedResult[application.BookingDTO]
		err    error
	)
	switch c.DefaultQuery("as", "renter") {
	case "owner":
		result, err = h.bookings.ListOwnerBookings(c.Request.Context(), userID, page, limit)
	case "renter":
		result, err = h.bookings.ListRenterBookings(c.Request.Context(), userID, page, limit)
	default:
		response.BadRequest(c, "as must be renter or owner")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, ok := parseID(c, "id", "booking ID")
	if !ok {
		return
	}
	userID, isAdmin, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.bookings.GetBooking(c.Request.Context(), bookingID, userID, isAdmin)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetAuditTrail handles GET /api/v1/bookings/:id/audit.
func (h *BookingHandler) GetAuditTrail(c *gin.Context) {
	bookingID, ok := parseID(c, "id", "booking ID")
	if !ok {
		return
	}
	userID, isAdmin, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.bookings.GetAuditTrail(c.Request.Context(), bookingID, userID, isAdmin)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetAvailableActions handles GET /api/v1/bookings/:id/actions.
func (h *BookingHandler) GetAvailableActions(c *gin.Context) {
	bookingID, actor, ok := h.resolve(c)
	if !ok {
		return
	}

	result, err := h.lifecycle.GetAvailableActions(c.Request.Context(), bookingID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// AcceptBooking handles POST /api/v1/bookings/:id/accept.
func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	bookingID, actor, ok := h.resolve(c)
	if !ok {
		return
	}
	writeTransition(c, h.lifecycle.AcceptBooking(c.Request.Context(), bookingID, actor))
}

// DeclineBooking handles POST /api/v1/bookings/:id/decline.
func (h *BookingHandler) DeclineBooking(c *gin.Context) {
	bookingID, actor, ok := h.resolve(c)
	if !ok {
		return
	}
	var body reasonBody
	if !bindOptionalJSON(c, &body) {
		return
	}
	writeTransition(c, h.lifecycle.DeclineBooking(c.Request.Context(), bookingID, actor, body.Reason))
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID, actor, ok := h.resolve(c)
	if !ok {
		return
	}
	var body reasonBody
	if !bindOptionalJSON(c, &body) {
		return
	}
	writeTransition(c, h.lifecycle.CancelBooking(c.Request.Context(), bookingID, actor, body.Reason))
}

// MarkReadyForPickup handles POST /api/v1/bookings/:id/ready.
func (h *BookingHandler) MarkReadyForPickup(c *gin.Context) {
	bookingID, actor, ok := h.resolve(c)
	if !ok {
		return
	}
	var body readyBody
	if !bindOptionalJSON(c, &body) {
		return
	}
	writeTransition(c, h.lifecycle.MarkReadyForPickup(c.Request.Context(), bookingID, actor, body.PaymentComplete))
}

// StartRental handles POST /api/v1/bookings/:id/pickup.
func (h *BookingHandler) StartRental(c *gin.Context) {
	bookingID, actor, ok := h.resolve(c)
	if !ok {
		return
	}
	var body engineHoursBody
	if !bindOptionalJSON(c, &body) {
		return
	}
	writeTransition(c, h.lifecycle.StartRental(c.Request.Context(), bookingID, actor, body.EngineHours))
}

// MarkReturned handles POST /api/v1/bookings/:id/return.
func (h *BookingHandler) MarkReturned(c *gin.Context) {
	bookingID, actor, ok := h.resolve(c)
	if !ok {
		return
	}
	var body engineHoursBody
	if !bindOptionalJSON(c, &body) {
		return
	}
	writeTransition(c, h.lifecycle.MarkReturned(c.Request.Context(), bookingID, actor, body.EngineHours, body.Notes))
}

// CompleteInspection handles POST /api/v1/bookings/:id/inspection.
func (h *BookingHandler) CompleteInspection(c *gin.Context) {
	bookingID, actor, ok := h.resolve(c)
	if !ok {
		return
	}

	result, err := h.lifecycle.CompleteInspection(c.Request.Context(), bookingID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CompleteBooking handles POST /api/v1/bookings/:id/complete.
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	bookingID, actor, ok := h.resolve(c)
	if !ok {
		return
	}
	writeTransition(c, h.lifecycle.CompleteBooking(c.Request.Context(), bookingID, actor))
}

// RaiseDispute handles POST /api/v1/bookings/:id/dispute.
func (h *BookingHandler) RaiseDispute(c *gin.Context) {
	bookingID, actor, ok := h.resolve(c)
	if !ok {
		return
	}
	var body reasonBody
	if !bindOptionalJSON(c, &body) {
		return
	}
	writeTransition(c, h.lifecycle.RaiseDispute(c.Request.Context(), bookingID, actor, body.Reason))
}

// resolve parses the booking ID and works out which party the caller is.
func (h *BookingHandler) resolve(c *gin.Context) (uuid.UUID, application.Actor, bool) {
	bookingID, ok := parseID(c, "id", "booking ID")
	if !ok {
		return uuid.Nil, application.Actor{}, false
	}
	userID, isAdmin, ok := currentUser(c)
	if !ok {
		return uuid.Nil, application.Actor{}, false
	}
	actor, err := h.lifecycle.ResolveActor(c.Request.Context(), bookingID, userID, isAdmin)
	if err != nil {
		response.Error(c, err)
		return uuid.Nil, application.Actor{}, false
	}
	return bookingID, actor, true
}
