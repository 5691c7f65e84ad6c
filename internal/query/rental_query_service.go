package query

import (
	"context"
	"sort"

	"github.com/campusride/campus/internal/repository"
	"github.com/campusride/campus/internal/store"
	"github.com/campusride/campus/shared/cqrs"
	"github.com/campusride/campus/shared/models"
)

type RentalQueryService struct {
	scooties *repository.ScootyRepository
}

func NewRentalQueryService(scooties *repository.ScootyRepository) *RentalQueryService {
	return &RentalQueryService{scooties: scooties}
}

// ListAvailable returns other owners' available listings, cheapest first.
func (s *RentalQueryService) ListAvailable(ctx context.Context, q cqrs.ListAvailableScootiesQuery) ([]models.ScootyView, error) {
	if q.RequestingUserID == "" {
		return []models.ScootyView{}, nil
	}
	listings, err := s.scooties.List(ctx,
		store.Eq("status", string(models.ScootyAvailable)),
		store.Neq("ownerId", q.RequestingUserID),
	)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(listings, func(i, j int) bool {
		return listings[i].PricePerHour.LessThan(listings[j].PricePerHour)
	})
	return scootyViews(listings), nil
}

// ListMyRentals returns listings the user is currently renting.
func (s *RentalQueryService) ListMyRentals(ctx context.Context, q cqrs.ListMyRentalsQuery) ([]models.ScootyView, error) {
	if q.UserID == "" {
		return []models.ScootyView{}, nil
	}
	listings, err := s.scooties.List(ctx,
		store.Eq("currentRenterId", q.UserID),
		store.Eq("status", string(models.ScootyRented)),
	)
	if err != nil {
		return nil, err
	}
	return scootyViews(listings), nil
}

// ListMyListings returns every listing the user owns, newest first.
func (s *RentalQueryService) ListMyListings(ctx context.Context, q cqrs.ListMyListingsQuery) ([]models.ScootyView, error) {
	if q.UserID == "" {
		return []models.ScootyView{}, nil
	}
	listings, err := s.scooties.List(ctx, store.Eq("ownerId", q.UserID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(listings, func(i, j int) bool {
		return listings[i].CreatedAt.After(listings[j].CreatedAt)
	})
	return scootyViews(listings), nil
}

func scootyViews(listings []models.ScootyRental) []models.ScootyView {
	views := make([]models.ScootyView, 0, len(listings))
	for i := range listings {
		views = append(views, *models.ScootyToView(&listings[i]))
	}
	return views
}
