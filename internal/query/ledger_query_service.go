package query

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/campusride/campus/internal/repository"
	"github.com/campusride/campus/shared/cqrs"
	"github.com/campusride/campus/shared/errs"
	"github.com/campusride/campus/shared/events"
	"github.com/campusride/campus/shared/models"
	"github.com/shopspring/decimal"
)

// LedgerQueryService serves wallet reads. Queries without a session return
// empty results rather than errors.
type LedgerQueryService struct {
	users *repository.UserRepository
	txs   *repository.TransactionRepository
}

func NewLedgerQueryService(users *repository.UserRepository, txs *repository.TransactionRepository) *LedgerQueryService {
	return &LedgerQueryService{users: users, txs: txs}
}

// GetBalance returns the cached balance. An account that has not been
// created yet has a zero balance.
func (s *LedgerQueryService) GetBalance(ctx context.Context, q cqrs.GetBalanceQuery) (*models.WalletView, error) {
	view := &models.WalletView{UserID: q.UserID, Balance: decimal.Zero}
	if q.UserID == "" {
		return view, nil
	}
	u, err := s.users.Get(ctx, q.UserID)
	if errors.Is(err, errs.ErrNotFound) {
		return view, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	view.Balance = u.WalletBalance
	return view, nil
}

// ListTransactions returns the wallet's log, newest first.
func (s *LedgerQueryService) ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.TransactionView, error) {
	if q.UserID == "" {
		return []models.TransactionView{}, nil
	}
	txs, err := s.txs.ListByUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	views := make([]models.TransactionView, 0, len(txs))
	for i := range txs {
		views = append(views, *models.TransactionToView(&txs[i]))
	}
	return views, nil
}

// Reconcile recomputes the balance from the log. The two reads are not
// atomic, so a concurrent write can show transient drift.
func (s *LedgerQueryService) Reconcile(ctx context.Context, q cqrs.ReconcileQuery) (*models.ReconciliationView, error) {
	if q.UserID == "" {
		return nil, errs.ErrNoSession
	}
	u, err := s.users.Get(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile %s: %w", q.UserID, err)
	}
	txs, err := s.txs.ListByUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	sum := decimal.Zero
	for i := range txs {
		sum = sum.Add(txs[i].Signed())
	}
	return &models.ReconciliationView{
		UserID:     q.UserID,
		Balance:    u.WalletBalance,
		LogSum:     sum,
		Entries:    len(txs),
		Consistent: sum.Equal(u.WalletBalance),
	}, nil
}

// HandleLedgerEvent audits a wallet after each transaction.created event and
// logs any drift between balance and log. Drift is rechecked once before it
// is reported, to rule out a write landing between the two reads.
func (s *LedgerQueryService) HandleLedgerEvent(ctx context.Context, event events.Event) error {
	if event.Type != events.TransactionCreated {
		return nil
	}
	var payload events.TransactionCreatedEvent
	if err := events.Decode(event, &payload); err != nil {
		return err
	}

	var rec *models.ReconciliationView
	for attempt := 0; attempt < 2; attempt++ {
		var err error
		rec, err = s.Reconcile(ctx, cqrs.ReconcileQuery{UserID: payload.UserID})
		if err != nil {
			return err
		}
		if rec.Consistent {
			return nil
		}
	}
	log.Printf("LEDGER DRIFT: user=%s balance=%s log=%s entries=%d", rec.UserID, rec.Balance, rec.LogSum, rec.Entries)
	return nil
}
