package command

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/campusride/campus/internal/repository"
	"github.com/campusride/campus/shared/cqrs"
	"github.com/campusride/campus/shared/errs"
	"github.com/campusride/campus/shared/events"
	"github.com/campusride/campus/shared/models"
)

// RideCommandService drives the ride request state machine:
// pending -> accepted -> completed, and pending -> cancelled.
// Every transition is a conditional update on the locked current state.
type RideCommandService struct {
	rides     *repository.RideRepository
	users     *repository.UserRepository
	publisher EventPublisher
	now       func() time.Time
}

func NewRideCommandService(
	rides *repository.RideRepository,
	users *repository.UserRepository,
	publisher EventPublisher,
) *RideCommandService {
	return &RideCommandService{rides: rides, users: users, publisher: publisher, now: time.Now}
}

func (s *RideCommandService) RequestRide(ctx context.Context, cmd cqrs.RequestRideCommand) (*models.RideRequest, error) {
	if cmd.UserID == "" {
		return nil, errs.ErrNoSession
	}
	pickup, dropoff := strings.TrimSpace(cmd.Pickup), strings.TrimSpace(cmd.Dropoff)
	if pickup == "" || dropoff == "" {
		return nil, fmt.Errorf("pickup and dropoff are required: %w", errs.ErrInvalidInput)
	}

	ride := &models.RideRequest{
		RiderID:   cmd.UserID,
		RiderName: s.users.DisplayName(ctx, cmd.Identity),
		Pickup:    pickup,
		Dropoff:   dropoff,
		Status:    models.RidePending,
		Timestamp: s.now().UTC(),
	}
	if err := s.rides.Create(ctx, ride); err != nil {
		return nil, err
	}
	s.publish(ctx, events.RideRequested, ride)
	return ride, nil
}

// OfferRide accepts a pending request on behalf of the driver. The first
// offer wins; later offers fail with ErrAlreadyAccepted.
func (s *RideCommandService) OfferRide(ctx context.Context, cmd cqrs.OfferRideCommand) (*models.RideRequest, error) {
	if cmd.UserID == "" {
		return nil, errs.ErrNoSession
	}
	driverName := s.users.DisplayName(ctx, cmd.Identity)

	ride, err := s.rides.Update(ctx, cmd.RequestID, func(r *models.RideRequest) error {
		if r.Status != models.RidePending {
			return errs.ErrAlreadyAccepted
		}
		if r.RiderID == cmd.UserID {
			return fmt.Errorf("cannot offer a ride on your own request: %w", errs.ErrInvalidTransition)
		}
		r.Status = models.RideAccepted
		r.DriverID = cmd.UserID
		r.DriverName = driverName
		return nil
	})
	if err != nil {
		return nil, s.wrap("offer", cmd.RequestID, err)
	}
	s.publish(ctx, events.RideAccepted, ride)
	return ride, nil
}

// CompleteRide moves an accepted ride to completed. Only the rider or the
// accepted driver may complete it.
func (s *RideCommandService) CompleteRide(ctx context.Context, cmd cqrs.CompleteRideCommand) (*models.RideRequest, error) {
	if cmd.RequestingUserID == "" {
		return nil, errs.ErrNoSession
	}
	now := s.now().UTC()

	ride, err := s.rides.Update(ctx, cmd.RequestID, func(r *models.RideRequest) error {
		if r.RiderID != cmd.RequestingUserID && r.DriverID != cmd.RequestingUserID {
			return errs.ErrForbidden
		}
		if r.Status != models.RideAccepted {
			return fmt.Errorf("ride is %s: %w", r.Status, errs.ErrInvalidTransition)
		}
		r.Status = models.RideCompleted
		r.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, s.wrap("complete", cmd.RequestID, err)
	}
	s.publish(ctx, events.RideCompleted, ride)
	return ride, nil
}

// CancelRide withdraws a pending request. Only the rider may cancel.
func (s *RideCommandService) CancelRide(ctx context.Context, cmd cqrs.CancelRideCommand) (*models.RideRequest, error) {
	if cmd.RequestingUserID == "" {
		return nil, errs.ErrNoSession
	}
	now := s.now().UTC()

	ride, err := s.rides.Update(ctx, cmd.RequestID, func(r *models.RideRequest) error {
		if r.RiderID != cmd.RequestingUserID {
			return errs.ErrForbidden
		}
		if r.Status != models.RidePending {
			return fmt.Errorf("ride is %s: %w", r.Status, errs.ErrInvalidTransition)
		}
		r.Status = models.RideCancelled
		r.CancelledAt = &now
		return nil
	})
	if err != nil {
		return nil, s.wrap("cancel", cmd.RequestID, err)
	}
	s.publish(ctx, events.RideCancelled, ride)
	return ride, nil
}

func (s *RideCommandService) wrap(op, id string, err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("ride request %s: %w", id, errs.ErrNotFound)
	}
	return fmt.Errorf("failed to %s ride %s: %w", op, id, err)
}

func (s *RideCommandService) publish(ctx context.Context, eventType string, r *models.RideRequest) {
	if err := s.publisher.Publish(ctx, events.RideEventsStream, eventType, events.RideEvent{
		RequestID: r.ID,
		RiderID:   r.RiderID,
		DriverID:  r.DriverID,
		Status:    string(r.Status),
	}); err != nil {
		log.Printf("Failed to publish %s event: %v", eventType, err)
	}
}

