package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/campusride/campus/internal/store"
	"github.com/campusride/campus/shared/models"
)

// Entry is the outcome of ApplyEntry. Transaction is nil when the decision
// declined the entry; Replayed is set when the entry id already existed.
type Entry struct {
	Transaction *models.Transaction
	Account     *models.User
	Replayed    bool
}

// TransactionRepository appends to the transaction log and keeps the cached
// wallet balance in step with it.
type TransactionRepository struct {
	store store.Store
	now   func() time.Time
}

func NewTransactionRepository(st store.Store) *TransactionRepository {
	return &TransactionRepository{store: st, now: time.Now}
}

// ApplyEntry locks the account, then lets decide inspect it and return the
// transaction to append, or nil to leave everything unchanged. The
// transaction and the new balance are written in the same store
// transaction. An entry id that already exists is a replay: decide is not
// called and the stored transaction is returned.
func (r *TransactionRepository) ApplyEntry(
	ctx context.Context,
	userID, entryID string,
	decide func(acct *models.User) (*models.Transaction, error),
) (*Entry, error) {
	var out Entry
	err := r.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		out = Entry{}

		var acct models.User
		if err := tx.Get(ctx, models.UsersCollection, userID, &acct); err != nil {
			return err
		}
		acct.ID = userID

		var existing models.Transaction
		err := tx.Get(ctx, models.TransactionsCollection, entryID, &existing)
		if err == nil {
			if existing.UserID != userID {
				return fmt.Errorf("transaction %s belongs to another account", entryID)
			}
			existing.ID = entryID
			out = Entry{Transaction: &existing, Account: &acct, Replayed: true}
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		t, err := decide(&acct)
		if err != nil {
			return err
		}
		if t == nil {
			out = Entry{Account: &acct}
			return nil
		}

		ts := r.now().UTC()
		if !ts.After(acct.UpdatedAt) {
			ts = acct.UpdatedAt.Add(time.Microsecond)
		}
		t.ID = entryID
		t.UserID = userID
		t.Timestamp = ts
		acct.WalletBalance = acct.WalletBalance.Add(t.Signed())
		acct.UpdatedAt = ts

		if err := tx.Create(ctx, models.TransactionsCollection, entryID, t); err != nil {
			return err
		}
		if err := tx.Put(ctx, models.UsersCollection, userID, &acct); err != nil {
			return err
		}
		out = Entry{Transaction: t, Account: &acct}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListByUser returns the account's transactions, newest first.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID string) ([]models.Transaction, error) {
	recs, err := r.store.Query(ctx, models.TransactionsCollection, store.Eq("userId", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	txs, err := decodeAll(recs, func(t *models.Transaction, id string) { t.ID = id })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return txs[i].Timestamp.After(txs[j].Timestamp)
		}
		return txs[i].ID > txs[j].ID
	})
	return txs, nil
}
