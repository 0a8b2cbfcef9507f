package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rigshare/service-booking/internal/application"
	"github.com/rigshare/service-booking/pkg/auth"
	"github.com/rigshare/service-booking/pkg/middleware"
	"github.com/rigshare/service-booking/pkg/response"
)

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}

// parseID reads a UUID path parameter, writing 400 when it is malformed.
func parseID(c *gin.Context, param, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.BadRequest(c, "invalid "+label)
		return uuid.Nil, false
	}
	return id, true
}

// bindOptionalJSON binds an optional request body. An empty body is fine; a
// body that does not decode is answered with 400.
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, err.Error())
		return false
	}
	return true
}

// currentUser returns the authenticated user and whether they are an admin.
func currentUser(c *gin.Context) (uuid.UUID, bool, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, false, false
	}
	role, _ := middleware.GetUserRole(c)
	return userID, role == auth.RoleAdmin, true
}

// writeTransition renders a lifecycle result. Rejected transitions carry
// their kind, so the status code comes from the same mapping as errors.
func writeTransition(c *gin.Context, result application.TransitionResult) {
	if !result.Success {
		response.Fail(c, result.ErrorKind, result.Error)
		return
	}
	response.Success(c, result)
}
