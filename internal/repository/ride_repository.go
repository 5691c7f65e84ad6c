package repository

import (
	"context"
	"fmt"

	"github.com/campusride/campus/internal/store"
	"github.com/campusride/campus/shared/models"
	"github.com/campusride/campus/shared/utils"
)

type RideRepository struct {
	store store.Store
}

func NewRideRepository(st store.Store) *RideRepository {
	return &RideRepository{store: st}
}

func (r *RideRepository) Create(ctx context.Context, ride *models.RideRequest) error {
	if ride.ID == "" {
		ride.ID = utils.GenerateID()
	}
	if err := r.store.Create(ctx, models.RideRequestsCollection, ride.ID, ride); err != nil {
		return fmt.Errorf("failed to create ride request: %w", err)
	}
	return nil
}

func (r *RideRepository) Get(ctx context.Context, id string) (*models.RideRequest, error) {
	var ride models.RideRequest
	if err := r.store.Get(ctx, models.RideRequestsCollection, id, &ride); err != nil {
		return nil, err
	}
	ride.ID = id
	return &ride, nil
}

// Update applies mutate to the locked current state of the request.
func (r *RideRepository) Update(ctx context.Context, id string, mutate func(*models.RideRequest) error) (*models.RideRequest, error) {
	ride, err := store.Update(ctx, r.store, models.RideRequestsCollection, id, func(ride *models.RideRequest) error {
		ride.ID = id
		return mutate(ride)
	})
	if err != nil {
		return nil, err
	}
	ride.ID = id
	return ride, nil
}

func (r *RideRepository) List(ctx context.Context, filters ...store.Filter) ([]models.RideRequest, error) {
	recs, err := r.store.Query(ctx, models.RideRequestsCollection, filters...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ride requests: %w", err)
	}
	return decodeAll(recs, func(ride *models.RideRequest, id string) { ride.ID = id })
}
