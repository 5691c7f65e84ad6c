package query

import (
	"context"
	"sort"

	"github.com/campusride/campus/internal/repository"
	"github.com/campusride/campus/internal/store"
	"github.com/campusride/campus/shared/cqrs"
	"github.com/campusride/campus/shared/models"
)

type RideQueryService struct {
	rides *repository.RideRepository
}

func NewRideQueryService(rides *repository.RideRepository) *RideQueryService {
	return &RideQueryService{rides: rides}
}

// ListOpenRides returns pending requests of other riders, newest first.
func (s *RideQueryService) ListOpenRides(ctx context.Context, q cqrs.ListOpenRidesQuery) ([]models.RideRequestView, error) {
	if q.RequestingUserID == "" {
		return []models.RideRequestView{}, nil
	}
	rides, err := s.rides.List(ctx,
		store.Eq("status", string(models.RidePending)),
		store.Neq("riderId", q.RequestingUserID),
	)
	if err != nil {
		return nil, err
	}
	return rideViews(rides), nil
}

// ListMyRides returns requests the user created or drives, newest first.
func (s *RideQueryService) ListMyRides(ctx context.Context, q cqrs.ListMyRidesQuery) ([]models.RideRequestView, error) {
	if q.UserID == "" {
		return []models.RideRequestView{}, nil
	}
	asRider, err := s.rides.List(ctx, store.Eq("riderId", q.UserID))
	if err != nil {
		return nil, err
	}
	asDriver, err := s.rides.List(ctx, store.Eq("driverId", q.UserID))
	if err != nil {
		return nil, err
	}
	return rideViews(append(asRider, asDriver...)), nil
}

func rideViews(rides []models.RideRequest) []models.RideRequestView {
	sort.SliceStable(rides, func(i, j int) bool {
		return rides[i].Timestamp.After(rides[j].Timestamp)
	})
	seen := make(map[string]struct{}, len(rides))
	views := make([]models.RideRequestView, 0, len(rides))
	for i := range rides {
		if _, dup := seen[rides[i].ID]; dup {
			continue
		}
		seen[rides[i].ID] = struct{}{}
		views = append(views, *models.RideToView(&rides[i]))
	}
	return views
}
