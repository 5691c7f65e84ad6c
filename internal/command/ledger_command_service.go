package command

import (
	"context"
	"fmt"
	"log"

	"github.com/campusride/campus/internal/repository"
	"github.com/campusride/campus/shared/cqrs"
	"github.com/campusride/campus/shared/errs"
	"github.com/campusride/campus/shared/events"
	"github.com/campusride/campus/shared/models"
	"github.com/campusride/campus/shared/utils"
	"github.com/shopspring/decimal"
)

// LedgerCommandService mutates wallets. Every mutation appends exactly one
// transaction and moves the cached balance in the same store transaction.
type LedgerCommandService struct {
	users     *repository.UserRepository
	txs       *repository.TransactionRepository
	publisher EventPublisher
}

func NewLedgerCommandService(
	users *repository.UserRepository,
	txs *repository.TransactionRepository,
	publisher EventPublisher,
) *LedgerCommandService {
	return &LedgerCommandService{users: users, txs: txs, publisher: publisher}
}

// EnsureAccount creates the wallet on first access.
func (s *LedgerCommandService) EnsureAccount(ctx context.Context, id cqrs.Identity) error {
	if id.UserID == "" {
		return errs.ErrNoSession
	}
	created, err := s.users.Ensure(ctx, id)
	if err != nil {
		return err
	}
	if created {
		if err := s.publisher.Publish(ctx, events.LedgerEventsStream, events.AccountOpened, events.AccountOpenedEvent{
			UserID: id.UserID,
			Email:  id.Email,
		}); err != nil {
			log.Printf("Failed to publish account.opened event: %v", err)
		}
	}
	return nil
}

func (s *LedgerCommandService) TopUp(ctx context.Context, cmd cqrs.TopUpCommand) (*models.Transaction, error) {
	if cmd.UserID == "" {
		return nil, errs.ErrNoSession
	}
	if !cmd.Amount.IsPositive() {
		return nil, errs.ErrInvalidAmount
	}
	if err := s.EnsureAccount(ctx, cmd.Identity); err != nil {
		return nil, err
	}

	entry, err := s.txs.ApplyEntry(ctx, cmd.UserID, entryID(cmd.UserID, "topup", cmd.IdempotencyKey),
		func(*models.User) (*models.Transaction, error) {
			return &models.Transaction{
				Amount:      cmd.Amount,
				Type:        models.TransactionTopUp,
				Description: "Wallet top-up",
			}, nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to top up: %w", err)
	}
	if err := checkReplay(entry, models.TransactionTopUp, cmd.Amount); err != nil {
		return nil, err
	}
	s.publishTransaction(ctx, entry)
	return entry.Transaction, nil
}

// Charge debits the wallet if the balance covers amount. Insufficient funds
// is reported as false with a nil error and changes nothing.
func (s *LedgerCommandService) Charge(ctx context.Context, cmd cqrs.ChargeCommand) (bool, error) {
	if cmd.UserID == "" {
		return false, errs.ErrNoSession
	}
	if !cmd.Amount.IsPositive() {
		return false, errs.ErrInvalidAmount
	}
	if err := s.EnsureAccount(ctx, cmd.Identity); err != nil {
		return false, err
	}

	entry, err := s.txs.ApplyEntry(ctx, cmd.UserID, entryID(cmd.UserID, "charge", cmd.IdempotencyKey),
		func(acct *models.User) (*models.Transaction, error) {
			if acct.WalletBalance.LessThan(cmd.Amount) {
				return nil, nil
			}
			return &models.Transaction{
				Amount:      cmd.Amount,
				Type:        models.TransactionPayment,
				Description: cmd.Description,
			}, nil
		})
	if err != nil {
		return false, fmt.Errorf("failed to charge: %w", err)
	}
	if err := checkReplay(entry, models.TransactionPayment, cmd.Amount); err != nil {
		return false, err
	}
	if entry.Transaction == nil {
		log.Printf("Charge declined: user=%s amount=%s balance=%s", cmd.UserID, cmd.Amount, entry.Account.WalletBalance)
		return false, nil
	}
	s.publishTransaction(ctx, entry)
	return true, nil
}

// Refund credits the wallet. It is the compensating action for a charge
// whose follow-up step failed, so the account must already exist.
func (s *LedgerCommandService) Refund(ctx context.Context, cmd cqrs.RefundCommand) (*models.Transaction, error) {
	if cmd.UserID == "" {
		return nil, errs.ErrNoSession
	}
	if !cmd.Amount.IsPositive() {
		return nil, errs.ErrInvalidAmount
	}

	entry, err := s.txs.ApplyEntry(ctx, cmd.UserID, utils.GenerateID(),
		func(*models.User) (*models.Transaction, error) {
			return &models.Transaction{
				Amount:      cmd.Amount,
				Type:        models.TransactionRefund,
				Description: cmd.Description,
			}, nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to refund: %w", err)
	}
	s.publishTransaction(ctx, entry)
	return entry.Transaction, nil
}

func (s *LedgerCommandService) publishTransaction(ctx context.Context, entry *repository.Entry) {
	if entry.Replayed || entry.Transaction == nil {
		return
	}
	t := entry.Transaction
	if err := s.publisher.Publish(ctx, events.LedgerEventsStream, events.TransactionCreated, events.TransactionCreatedEvent{
		TransactionID: t.ID,
		UserID:        t.UserID,
		Amount:        t.Amount.String(),
		Type:          string(t.Type),
		NewBalance:    entry.Account.WalletBalance.String(),
	}); err != nil {
		log.Printf("Failed to publish transaction.created event: %v", err)
	}
}

// checkReplay rejects a replayed key whose stored entry differs from the
// command now presented with it.
func checkReplay(entry *repository.Entry, typ models.TransactionType, amount decimal.Decimal) error {
	if !entry.Replayed {
		return nil
	}
	t := entry.Transaction
	if t.Type != typ || !t.Amount.Equal(amount) {
		return fmt.Errorf("transaction %s is a %s of %s: %w", t.ID, t.Type, t.Amount, errs.ErrIdempotencyConflict)
	}
	return nil
}

func entryID(userID, operation, idempotencyKey string) string {
	if idempotencyKey == "" {
		return utils.GenerateID()
	}
	return utils.IdempotentID(userID, operation, idempotencyKey)
}
