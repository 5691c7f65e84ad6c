package command

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/campusride/campus/internal/repository"
	"github.com/campusride/campus/internal/store"
	"github.com/campusride/campus/shared/cqrs"
	"github.com/campusride/campus/shared/errs"
	"github.com/campusride/campus/shared/events"
	"github.com/campusride/campus/shared/models"
	"github.com/shopspring/decimal"
)

// Charger is the slice of the ledger the rental board depends on.
type Charger interface {
	Charge(ctx context.Context, cmd cqrs.ChargeCommand) (bool, error)
	Refund(ctx context.Context, cmd cqrs.RefundCommand) (*models.Transaction, error)
}

// errListingTaken aborts the rent transition when the listing changed
// between the read and the locked update.
var errListingTaken = errors.New("listing no longer available")

// RentalCommandService drives the listing state machine:
// available -> rented -> available, and available|rented -> unavailable.
// Renting is gated by a ledger charge; there is no transaction spanning the
// ledger and the listing, so a charge followed by a lost listing race is
// compensated with a refund.
type RentalCommandService struct {
	scooties  *repository.ScootyRepository
	users     *repository.UserRepository
	ledger    Charger
	publisher EventPublisher
	now       func() time.Time
}

func NewRentalCommandService(
	scooties *repository.ScootyRepository,
	users *repository.UserRepository,
	ledger Charger,
	publisher EventPublisher,
) *RentalCommandService {
	return &RentalCommandService{scooties: scooties, users: users, ledger: ledger, publisher: publisher, now: time.Now}
}

func (s *RentalCommandService) ListScooty(ctx context.Context, cmd cqrs.ListScootyCommand) (*models.ScootyRental, error) {
	if cmd.UserID == "" {
		return nil, errs.ErrNoSession
	}
	if !cmd.PricePerHour.IsPositive() {
		return nil, errs.ErrInvalidAmount
	}
	model := strings.TrimSpace(cmd.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required: %w", errs.ErrInvalidInput)
	}

	listing := &models.ScootyRental{
		OwnerID:      cmd.UserID,
		OwnerName:    s.users.DisplayName(ctx, cmd.Identity),
		Model:        model,
		PricePerHour: cmd.PricePerHour,
		Status:       models.ScootyAvailable,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.scooties.Create(ctx, listing); err != nil {
		return nil, err
	}
	s.publish(ctx, events.ScootyListed, listing, nil)
	return listing, nil
}

// RentScooty charges the renter and then leases the listing. It returns
// false, with nothing changed, when the listing is not available, belongs
// to the renter, or the wallet cannot cover the cost.
func (s *RentalCommandService) RentScooty(ctx context.Context, cmd cqrs.RentScootyCommand) (bool, error) {
	if cmd.UserID == "" {
		return false, errs.ErrNoSession
	}
	if cmd.Hours <= 0 {
		return false, errs.ErrInvalidAmount
	}

	listing, err := s.scooties.Get(ctx, cmd.ScootyID)
	if err != nil {
		return false, wrapListing(cmd.ScootyID, err)
	}
	if listing.Status != models.ScootyAvailable || listing.OwnerID == cmd.UserID {
		return false, nil
	}

	cost := listing.PricePerHour.Mul(decimal.NewFromInt(int64(cmd.Hours)))
	charged, err := s.ledger.Charge(ctx, cqrs.ChargeCommand{
		Identity:    cmd.Identity,
		Amount:      cost,
		Description: fmt.Sprintf("Scooty rental: %s for %d hours", listing.Model, cmd.Hours),
	})
	if err != nil || !charged {
		return false, err
	}

	// The renter has paid: the lease or its refund must complete even if
	// the caller goes away.
	ctx = context.WithoutCancel(ctx)

	renterName := s.users.DisplayName(ctx, cmd.Identity)
	start := s.now().UTC()
	end := start.Add(time.Duration(cmd.Hours) * time.Hour)

	rented, err := s.scooties.Update(ctx, cmd.ScootyID, func(l *models.ScootyRental) error {
		if l.Status != models.ScootyAvailable || l.OwnerID == cmd.UserID {
			return errListingTaken
		}
		l.Status = models.ScootyRented
		l.CurrentRenterID = cmd.UserID
		l.CurrentRenterName = renterName
		l.RentalStart = &start
		l.RentalEnd = &end
		return nil
	})
	if err != nil {
		refundErr := s.refund(ctx, cmd.UserID, cost, listing.Model)
		if errors.Is(err, errListingTaken) {
			if refundErr != nil {
				return false, errors.Join(fmt.Errorf("scooty %s: %w", cmd.ScootyID, errs.ErrInvalidTransition), refundErr)
			}
			log.Printf("Rent lost race: scooty=%s renter=%s refunded=%s", cmd.ScootyID, cmd.UserID, cost)
			return false, nil
		}
		return false, errors.Join(fmt.Errorf("failed to rent scooty %s: %w", cmd.ScootyID, err), refundErr)
	}

	s.publish(ctx, events.ScootyRented, rented, func(e *events.ScootyEvent) {
		e.TotalCost = cost.String()
		e.RentalHours = cmd.Hours
	})
	return true, nil
}

func (s *RentalCommandService) refund(ctx context.Context, userID string, amount decimal.Decimal, model string) error {
	_, err := s.ledger.Refund(ctx, cqrs.RefundCommand{
		UserID:      userID,
		Amount:      amount,
		Description: fmt.Sprintf("Refund: %s rental unavailable", model),
	})
	if err != nil {
		log.Printf("CRITICAL: compensating refund failed: user=%s amount=%s: %v", userID, amount, err)
		return fmt.Errorf("compensating refund: %w", err)
	}
	return nil
}

// ReturnScooty ends the lease. Returning an available listing is a no-op.
func (s *RentalCommandService) ReturnScooty(ctx context.Context, cmd cqrs.ReturnScootyCommand) (*models.ScootyRental, error) {
	if cmd.RequestingUserID == "" {
		return nil, errs.ErrNoSession
	}
	returned := false
	listing, err := s.scooties.Update(ctx, cmd.ScootyID, func(l *models.ScootyRental) error {
		switch l.Status {
		case models.ScootyAvailable:
			return store.ErrNoChange
		case models.ScootyRented:
		default:
			return fmt.Errorf("scooty is %s: %w", l.Status, errs.ErrInvalidTransition)
		}
		if l.CurrentRenterID != cmd.RequestingUserID && l.OwnerID != cmd.RequestingUserID {
			return errs.ErrForbidden
		}
		l.Status = models.ScootyAvailable
		l.ClearRenter()
		returned = true
		return nil
	})
	if err != nil {
		return nil, wrapListing(cmd.ScootyID, err)
	}
	if returned {
		s.publish(ctx, events.ScootyReturned, listing, nil)
	}
	return listing, nil
}

// WithdrawScooty takes the listing off the market, ending any lease.
func (s *RentalCommandService) WithdrawScooty(ctx context.Context, cmd cqrs.WithdrawScootyCommand) (*models.ScootyRental, error) {
	return s.ownerTransition(ctx, cmd.ScootyID, cmd.RequestingUserID, events.ScootyWithdrawn, func(l *models.ScootyRental) error {
		if l.Status != models.ScootyAvailable && l.Status != models.ScootyRented {
			return fmt.Errorf("scooty is %s: %w", l.Status, errs.ErrInvalidTransition)
		}
		l.Status = models.ScootyUnavailable
		l.ClearRenter()
		return nil
	})
}

// RelistScooty puts a withdrawn listing back on the market.
func (s *RentalCommandService) RelistScooty(ctx context.Context, cmd cqrs.RelistScootyCommand) (*models.ScootyRental, error) {
	return s.ownerTransition(ctx, cmd.ScootyID, cmd.RequestingUserID, events.ScootyRelisted, func(l *models.ScootyRental) error {
		if l.Status != models.ScootyUnavailable {
			return fmt.Errorf("scooty is %s: %w", l.Status, errs.ErrInvalidTransition)
		}
		l.Status = models.ScootyAvailable
		return nil
	})
}

func (s *RentalCommandService) ownerTransition(
	ctx context.Context,
	scootyID, userID, eventType string,
	transition func(*models.ScootyRental) error,
) (*models.ScootyRental, error) {
	if userID == "" {
		return nil, errs.ErrNoSession
	}
	listing, err := s.scooties.Update(ctx, scootyID, func(l *models.ScootyRental) error {
		if l.OwnerID != userID {
			return errs.ErrForbidden
		}
		return transition(l)
	})
	if err != nil {
		return nil, wrapListing(scootyID, err)
	}
	s.publish(ctx, eventType, listing, nil)
	return listing, nil
}

func wrapListing(id string, err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("scooty %s: %w", id, errs.ErrNotFound)
	}
	return fmt.Errorf("scooty %s: %w", id, err)
}

func (s *RentalCommandService) publish(ctx context.Context, eventType string, l *models.ScootyRental, decorate func(*events.ScootyEvent)) {
	ev := events.ScootyEvent{
		ScootyID: l.ID,
		OwnerID:  l.OwnerID,
		RenterID: l.CurrentRenterID,
		Status:   string(l.Status),
	}
	if decorate != nil {
		decorate(&ev)
	}
	if err := s.publisher.Publish(ctx, events.RentalEventsStream, eventType, ev); err != nil {
		log.Printf("Failed to publish %s event: %v", eventType, err)
	}
}
