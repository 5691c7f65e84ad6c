package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/campusride/campus/shared/errs"
	"github.com/campusride/campus/shared/middleware"
	"github.com/gin-gonic/gin"
)

// respondWithDomainError maps the error taxonomy onto HTTP statuses.
// Anything unrecognised is logged and reported as fallback.
func respondWithDomainError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, errs.ErrNoSession):
		middleware.RespondWithError(c, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, errs.ErrInvalidAmount):
		middleware.RespondWithError(c, http.StatusBadRequest, "Amount must be greater than zero")
	case errors.Is(err, errs.ErrInvalidInput):
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request data")
	case errors.Is(err, errs.ErrForbidden):
		middleware.RespondWithError(c, http.StatusForbidden, "You are not allowed to perform this action")
	case errors.Is(err, errs.ErrNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Resource not found")
	case errors.Is(err, errs.ErrAlreadyAccepted):
		middleware.RespondWithError(c, http.StatusConflict, "Ride request already accepted")
	case errors.Is(err, errs.ErrIdempotencyConflict):
		middleware.RespondWithError(c, http.StatusConflict, "Idempotency key already used for a different request")
	case errors.Is(err, errs.ErrInvalidTransition):
		middleware.RespondWithError(c, http.StatusConflict, "The resource changed state; refresh and retry")
	default:
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}

func bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return false
	}
	return true
}
