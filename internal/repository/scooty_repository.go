package repository

import (
	"context"
	"fmt"

	"github.com/campusride/campus/internal/store"
	"github.com/campusride/campus/shared/models"
	"github.com/campusride/campus/shared/utils"
)

type ScootyRepository struct {
	store store.Store
}

func NewScootyRepository(st store.Store) *ScootyRepository {
	return &ScootyRepository{store: st}
}

func (r *ScootyRepository) Create(ctx context.Context, s *models.ScootyRental) error {
	if s.ID == "" {
		s.ID = utils.GenerateID()
	}
	if err := r.store.Create(ctx, models.ScootyRentalsCollection, s.ID, s); err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

func (r *ScootyRepository) Get(ctx context.Context, id string) (*models.ScootyRental, error) {
	var s models.ScootyRental
	if err := r.store.Get(ctx, models.ScootyRentalsCollection, id, &s); err != nil {
		return nil, err
	}
	s.ID = id
	return &s, nil
}

// Update applies mutate to the locked current state of the listing.
func (r *ScootyRepository) Update(ctx context.Context, id string, mutate func(*models.ScootyRental) error) (*models.ScootyRental, error) {
	s, err := store.Update(ctx, r.store, models.ScootyRentalsCollection, id, func(s *models.ScootyRental) error {
		s.ID = id
		return mutate(s)
	})
	if err != nil {
		return nil, err
	}
	s.ID = id
	return s, nil
}

func (r *ScootyRepository) List(ctx context.Context, filters ...store.Filter) ([]models.ScootyRental, error) {
	recs, err := r.store.Query(ctx, models.ScootyRentalsCollection, filters...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scooties: %w", err)
	}
	return decodeAll(recs, func(s *models.ScootyRental, id string) { s.ID = id })
}
