package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/campusride/campus/internal/query"
	"github.com/campusride/campus/internal/repository"
	"github.com/campusride/campus/internal/store"
	"github.com/campusride/campus/internal/store/memory"
	"github.com/campusride/campus/shared/cqrs"
	"github.com/campusride/campus/shared/models"
	sharedredis "github.com/campusride/campus/shared/redis"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, _, eventType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.types {
		if t == eventType {
			n++
		}
	}
	return n
}

type harness struct {
	ctx      context.Context
	st       store.Store
	users    *repository.UserRepository
	txs      *repository.TransactionRepository
	scooties *repository.ScootyRepository
	pub      *recordingPublisher

	ledger   *LedgerCommandService
	ledgerQ  *query.LedgerQueryService
	rides    *RideCommandService
	ridesQ   *query.RideQueryService
	rentals  *RentalCommandService
	rentalsQ *query.RentalQueryService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })

	h := &harness{
		ctx:      context.Background(),
		st:       st,
		users:    repository.NewUserRepository(st, sharedredis.NewViewCache[models.UserView](nil, 0)),
		txs:      repository.NewTransactionRepository(st),
		scooties: repository.NewScootyRepository(st),
		pub:      &recordingPublisher{},
	}
	rides := repository.NewRideRepository(st)
	h.ledger = NewLedgerCommandService(h.users, h.txs, h.pub)
	h.ledgerQ = query.NewLedgerQueryService(h.users, h.txs)
	h.rides = NewRideCommandService(rides, h.users, h.pub)
	h.ridesQ = query.NewRideQueryService(rides)
	h.rentals = NewRentalCommandService(h.scooties, h.users, h.ledger, h.pub)
	h.rentalsQ = query.NewRentalQueryService(h.scooties)

	clock := newTickingClock()
	h.rides.now = clock
	h.rentals.now = clock
	return h
}

// newTickingClock returns a clock that advances one second per reading.
func newTickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func ident(uid string) cqrs.Identity {
	return cqrs.Identity{UserID: uid, Email: uid + "@campus.edu"}
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func (h *harness) fund(t *testing.T, uid string, amount int64) {
	t.Helper()
	_, err := h.ledger.TopUp(h.ctx, cqrs.TopUpCommand{Identity: ident(uid), Amount: dec(amount)})
	require.NoError(t, err)
}

func (h *harness) balance(t *testing.T, uid string) decimal.Decimal {
	t.Helper()
	w, err := h.ledgerQ.GetBalance(h.ctx, cqrs.GetBalanceQuery{UserID: uid})
	require.NoError(t, err)
	return w.Balance
}

func (h *harness) history(t *testing.T, uid string) []models.TransactionView {
	t.Helper()
	txs, err := h.ledgerQ.ListTransactions(h.ctx, cqrs.ListTransactionsQuery{UserID: uid})
	require.NoError(t, err)
	return txs
}

// assertBalance checks the balance and that it equals the signed log sum.
func (h *harness) assertBalance(t *testing.T, uid string, want int64) {
	t.Helper()
	assert.True(t, h.balance(t, uid).Equal(dec(want)), "balance of %s: got %s want %d", uid, h.balance(t, uid), want)
	rec, err := h.ledgerQ.Reconcile(h.ctx, cqrs.ReconcileQuery{UserID: uid})
	require.NoError(t, err)
	assert.True(t, rec.Consistent, "balance %s differs from log %s", rec.Balance, rec.LogSum)
}

func (h *harness) listing(t *testing.T, id string) *models.ScootyRental {
	t.Helper()
	l, err := h.scooties.Get(h.ctx, id)
	require.NoError(t, err)
	return l
}
