// Package response writes the JSON envelope used by every handler.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rigshare/service-booking/pkg/domain"
)

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type pageMeta struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// Success writes 200 with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

// Created writes 201 with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, envelope{Success: true, Data: data})
}

// Paginated writes 200 with items and page metadata.
func Paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Data:    items,
		Meta:    pageMeta{Total: total, Page: page, Limit: limit},
	})
}

// BadRequest writes 400 with msg.
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, envelope{Success: false, Error: msg, Kind: string(domain.KindValidation)})
}

// Fail writes a failure for a known kind and message.
func Fail(c *gin.Context, kind domain.ErrorKind, msg string) {
	c.JSON(StatusFor(kind), envelope{Success: false, Error: msg, Kind: string(kind)})
}

// Error maps err to a status code through its domain kind.
func Error(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	msg := err.Error()
	if kind == domain.KindInternal {
		msg = "internal server error"
	}
	Fail(c, kind, msg)
}

// StatusFor returns the HTTP status for an error kind.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindForbidden, domain.KindUnauthorizedActor:
		return http.StatusForbidden
	case domain.KindConflict, domain.KindTerminalState:
		return http.StatusConflict
	case domain.KindInvalidTransition, domain.KindPreconditionNotMet, domain.KindInvariantViolation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
