package handler

import (
	"context"
	"net/http"

	"github.com/campusride/campus/shared/cqrs"
	"github.com/campusride/campus/shared/middleware"
	"github.com/campusride/campus/shared/models"
	"github.com/gin-gonic/gin"
)

// RideCommander defines the write-side operations used by RideHandler.
type RideCommander interface {
	RequestRide(ctx context.Context, cmd cqrs.RequestRideCommand) (*models.RideRequest, error)
	OfferRide(ctx context.Context, cmd cqrs.OfferRideCommand) (*models.RideRequest, error)
	CompleteRide(ctx context.Context, cmd cqrs.CompleteRideCommand) (*models.RideRequest, error)
	CancelRide(ctx context.Context, cmd cqrs.CancelRideCommand) (*models.RideRequest, error)
}

// RideQuerier defines the read-side operations used by RideHandler.
type RideQuerier interface {
	ListOpenRides(ctx context.Context, q cqrs.ListOpenRidesQuery) ([]models.RideRequestView, error)
	ListMyRides(ctx context.Context, q cqrs.ListMyRidesQuery) ([]models.RideRequestView, error)
}

type RideHandler struct {
	commands RideCommander
	queries  RideQuerier
}

type CreateRideRequest struct {
	Pickup  string `json:"pickup" validate:"required,notblank,max=120"`
	Dropoff string `json:"dropoff" validate:"required,notblank,max=120"`
}

type ListRidesResponse struct {
	Rides []models.RideRequestView `json:"rides"`
}

func NewRideHandler(commands RideCommander, queries RideQuerier) *RideHandler {
	return &RideHandler{commands: commands, queries: queries}
}

func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ride, err := h.commands.RequestRide(c.Request.Context(), cqrs.RequestRideCommand{
		Identity: middleware.GetIdentity(c),
		Pickup:   req.Pickup,
		Dropoff:  req.Dropoff,
	})
	if err != nil {
		respondWithDomainError(c, err, "Failed to request ride")
		return
	}
	c.JSON(http.StatusCreated, models.RideToView(ride))
}

func (h *RideHandler) ListOpenRides(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	views, err := h.queries.ListOpenRides(c.Request.Context(), cqrs.ListOpenRidesQuery{RequestingUserID: userID})
	if err != nil {
		respondWithDomainError(c, err, "Failed to list rides")
		return
	}
	c.JSON(http.StatusOK, ListRidesResponse{Rides: views})
}

func (h *RideHandler) ListMyRides(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	views, err := h.queries.ListMyRides(c.Request.Context(), cqrs.ListMyRidesQuery{UserID: userID})
	if err != nil {
		respondWithDomainError(c, err, "Failed to list rides")
		return
	}
	c.JSON(http.StatusOK, ListRidesResponse{Rides: views})
}

func (h *RideHandler) OfferRide(c *gin.Context) {
	ride, err := h.commands.OfferRide(c.Request.Context(), cqrs.OfferRideCommand{
		Identity:  middleware.GetIdentity(c),
		RequestID: c.Param("requestId"),
	})
	if err != nil {
		respondWithDomainError(c, err, "Failed to offer ride")
		return
	}
	c.JSON(http.StatusOK, models.RideToView(ride))
}

func (h *RideHandler) CompleteRide(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	ride, err := h.commands.CompleteRide(c.Request.Context(), cqrs.CompleteRideCommand{
		RequestID:        c.Param("requestId"),
		RequestingUserID: userID,
	})
	if err != nil {
		respondWithDomainError(c, err, "Failed to complete ride")
		return
	}
	c.JSON(http.StatusOK, models.RideToView(ride))
}

func (h *RideHandler) CancelRide(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	ride, err := h.commands.CancelRide(c.Request.Context(), cqrs.CancelRideCommand{
		RequestID:        c.Param("requestId"),
		RequestingUserID: userID,
	})
	if err != nil {
		respondWithDomainError(c, err, "Failed to cancel ride")
		return
	}
	c.JSON(http.StatusOK, models.RideToView(ride))
}
