package handler

import (
	"context"
	"net/http"

	"github.com/campusride/campus/shared/cqrs"
	"github.com/campusride/campus/shared/middleware"
	"github.com/campusride/campus/shared/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// RentalCommander defines the write-side operations used by RentalHandler.
type RentalCommander interface {
	ListScooty(ctx context.Context, cmd cqrs.ListScootyCommand) (*models.ScootyRental, error)
	RentScooty(ctx context.Context, cmd cqrs.RentScootyCommand) (bool, error)
	ReturnScooty(ctx context.Context, cmd cqrs.ReturnScootyCommand) (*models.ScootyRental, error)
	WithdrawScooty(ctx context.Context, cmd cqrs.WithdrawScootyCommand) (*models.ScootyRental, error)
	RelistScooty(ctx context.Context, cmd cqrs.RelistScootyCommand) (*models.ScootyRental, error)
}

// RentalQuerier defines the read-side operations used by RentalHandler.
type RentalQuerier interface {
	ListAvailable(ctx context.Context, q cqrs.ListAvailableScootiesQuery) ([]models.ScootyView, error)
	ListMyRentals(ctx context.Context, q cqrs.ListMyRentalsQuery) ([]models.ScootyView, error)
	ListMyListings(ctx context.Context, q cqrs.ListMyListingsQuery) ([]models.ScootyView, error)
}

type RentalHandler struct {
	commands RentalCommander
	queries  RentalQuerier
}

type CreateListingRequest struct {
	Model        string          `json:"model" validate:"required,notblank,max=80"`
	PricePerHour decimal.Decimal `json:"pricePerHour" validate:"gt=0"`
}

type RentRequest struct {
	Hours int `json:"hours" validate:"required,gt=0,lte=72"`
}

type ListScootiesResponse struct {
	Scooties []models.ScootyView `json:"scooties"`
}

func NewRentalHandler(commands RentalCommander, queries RentalQuerier) *RentalHandler {
	return &RentalHandler{commands: commands, queries: queries}
}

func (h *RentalHandler) CreateListing(c *gin.Context) {
	var req CreateListingRequest
	if !bindAndValidate(c, &req) {
		return
	}

	listing, err := h.commands.ListScooty(c.Request.Context(), cqrs.ListScootyCommand{
		Identity:     middleware.GetIdentity(c),
		Model:        req.Model,
		PricePerHour: req.PricePerHour,
	})
	if err != nil {
		respondWithDomainError(c, err, "Failed to list scooty")
		return
	}
	c.JSON(http.StatusCreated, models.ScootyToView(listing))
}

func (h *RentalHandler) ListAvailable(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	h.respondWithList(c, "Failed to list scooties", func(ctx context.Context) ([]models.ScootyView, error) {
		return h.queries.ListAvailable(ctx, cqrs.ListAvailableScootiesQuery{RequestingUserID: userID})
	})
}

func (h *RentalHandler) ListMyRentals(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	h.respondWithList(c, "Failed to list rentals", func(ctx context.Context) ([]models.ScootyView, error) {
		return h.queries.ListMyRentals(ctx, cqrs.ListMyRentalsQuery{UserID: userID})
	})
}

func (h *RentalHandler) ListMyListings(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	h.respondWithList(c, "Failed to list listings", func(ctx context.Context) ([]models.ScootyView, error) {
		return h.queries.ListMyListings(ctx, cqrs.ListMyListingsQuery{UserID: userID})
	})
}

func (h *RentalHandler) respondWithList(c *gin.Context, fallback string, list func(context.Context) ([]models.ScootyView, error)) {
	views, err := list(c.Request.Context())
	if err != nil {
		respondWithDomainError(c, err, fallback)
		return
	}
	c.JSON(http.StatusOK, ListScootiesResponse{Scooties: views})
}

// RentScooty answers 422 when the listing cannot be rented or the wallet
// cannot cover the cost.
func (h *RentalHandler) RentScooty(c *gin.Context) {
	var req RentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	rented, err := h.commands.RentScooty(c.Request.Context(), cqrs.RentScootyCommand{
		Identity: middleware.GetIdentity(c),
		ScootyID: c.Param("scootyId"),
		Hours:    req.Hours,
	})
	if err != nil {
		respondWithDomainError(c, err, "Failed to rent scooty")
		return
	}
	if !rented {
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "Scooty is not available or funds are insufficient")
		return
	}
	c.JSON(http.StatusOK, gin.H{"rented": true})
}

func (h *RentalHandler) ReturnScooty(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	listing, err := h.commands.ReturnScooty(c.Request.Context(), cqrs.ReturnScootyCommand{
		ScootyID:         c.Param("scootyId"),
		RequestingUserID: userID,
	})
	if err != nil {
		respondWithDomainError(c, err, "Failed to return scooty")
		return
	}
	c.JSON(http.StatusOK, models.ScootyToView(listing))
}

func (h *RentalHandler) WithdrawScooty(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	listing, err := h.commands.WithdrawScooty(c.Request.Context(), cqrs.WithdrawScootyCommand{
		ScootyID:         c.Param("scootyId"),
		RequestingUserID: userID,
	})
	if err != nil {
		respondWithDomainError(c, err, "Failed to withdraw scooty")
		return
	}
	c.JSON(http.StatusOK, models.ScootyToView(listing))
}

func (h *RentalHandler) RelistScooty(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	listing, err := h.commands.RelistScooty(c.Request.Context(), cqrs.RelistScootyCommand{
		ScootyID:         c.Param("scootyId"),
		RequestingUserID: userID,
	})
	if err != nil {
		respondWithDomainError(c, err, "Failed to relist scooty")
		return
	}
	c.JSON(http.StatusOK, models.ScootyToView(listing))
}
