package feed

import (
	"context"
	"testing"
	"time"

	"github.com/campusride/campus/internal/command"
	"github.com/campusride/campus/internal/query"
	"github.com/campusride/campus/internal/repository"
	"github.com/campusride/campus/internal/store/memory"
	"github.com/campusride/campus/shared/cqrs"
	"github.com/campusride/campus/shared/events"
	"github.com/campusride/campus/shared/models"
	sharedredis "github.com/campusride/campus/shared/redis"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	feed   *Feed
	ledger *command.LedgerCommandService
	rides  *command.RideCommandService
	st     *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })

	users := repository.NewUserRepository(st, sharedredis.NewViewCache[models.UserView](nil, 0))
	txs := repository.NewTransactionRepository(st)
	rideRepo := repository.NewRideRepository(st)
	scooties := repository.NewScootyRepository(st)

	return &fixture{
		feed: New(st,
			query.NewLedgerQueryService(users, txs),
			query.NewRideQueryService(rideRepo),
			query.NewRentalQueryService(scooties),
		),
		ledger: command.NewLedgerCommandService(users, txs, events.Discard{}),
		rides:  command.NewRideCommandService(rideRepo, users, events.Discard{}),
		st:     st,
	}
}

func next(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot")
	}
	return Snapshot{}
}

func TestSubscribeSendsInitialSnapshotsThenChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := cqrs.Identity{UserID: "alice", Email: "alice@campus.edu"}

	sub, err := f.feed.Subscribe(ctx, "alice", TopicBalance, TopicTransactions)
	require.NoError(t, err)
	defer sub.Close()

	first := next(t, sub)
	assert.Equal(t, TopicBalance, first.Topic)
	assert.True(t, first.Data.(*models.WalletView).Balance.IsZero())
	second := next(t, sub)
	assert.Equal(t, TopicTransactions, second.Topic)
	assert.Empty(t, second.Data)

	_, err = f.ledger.TopUp(ctx, cqrs.TopUpCommand{Identity: alice, Amount: decimal.NewFromInt(75)})
	require.NoError(t, err)

	var balance *models.WalletView
	var txs []models.TransactionView
	deadline := time.After(2 * time.Second)
	for balance == nil || !balance.Balance.Equal(decimal.NewFromInt(75)) || len(txs) != 1 {
		select {
		case snap := <-sub.C():
			switch snap.Topic {
			case TopicBalance:
				balance = snap.Data.(*models.WalletView)
			case TopicTransactions:
				txs = snap.Data.([]models.TransactionView)
			}
		case <-deadline:
			t.Fatalf("feed did not converge: balance=%v txs=%d", balance, len(txs))
		}
	}
}

func TestUnrelatedChangesDoNotRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.feed.Subscribe(ctx, "alice", TopicRidePool)
	require.NoError(t, err)
	defer sub.Close()
	next(t, sub)

	_, err = f.ledger.TopUp(ctx, cqrs.TopUpCommand{Identity: cqrs.Identity{UserID: "bob"}, Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	_, err = f.rides.RequestRide(ctx, cqrs.RequestRideCommand{Identity: cqrs.Identity{UserID: "bob", Name: "Bob"}, Pickup: "Gate", Dropoff: "Library"})
	require.NoError(t, err)

	snap := next(t, sub)
	assert.Equal(t, TopicRidePool, snap.Topic)
	pool := snap.Data.([]models.RideRequestView)
	require.Len(t, pool, 1)
	assert.Equal(t, "Bob", pool[0].RiderName)
}

func TestSessionlessSubscriptionIsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, memory.Seed(ctx, f.st, time.Now()))

	sub, err := f.feed.Subscribe(ctx, "", TopicScootyPool, TopicRidePool)
	require.NoError(t, err)
	defer sub.Close()

	assert.Empty(t, next(t, sub).Data)
	assert.Empty(t, next(t, sub).Data)
}

func TestCloseIsIdempotentAndLeavesData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := cqrs.Identity{UserID: "alice"}
	_, err := f.ledger.TopUp(ctx, cqrs.TopUpCommand{Identity: alice, Amount: decimal.NewFromInt(40)})
	require.NoError(t, err)

	sub, err := f.feed.Subscribe(ctx, "alice")
	require.NoError(t, err)
	sub.Close()
	sub.Close()

	for range sub.C() {
	}

	var u models.User
	require.NoError(t, f.st.Get(ctx, models.UsersCollection, "alice", &u))
	assert.True(t, u.WalletBalance.Equal(decimal.NewFromInt(40)))
}

func TestParentContextEndsSubscription(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := f.feed.Subscribe(ctx, "alice", TopicBalance)
	require.NoError(t, err)
	cancel()

	done := make(chan struct{})
	go func() {
		for range sub.C() {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed by context")
	}
	sub.Close()
}

func TestParseTopics(t *testing.T) {
	all, err := ParseTopics(nil)
	require.NoError(t, err)
	assert.Equal(t, AllTopics, all)

	got, err := ParseTopics([]string{"balance", "myRides", "balance"})
	require.NoError(t, err)
	assert.Equal(t, []Topic{TopicBalance, TopicMyRides}, got)

	_, err = ParseTopics([]string{"adminReport"})
	assert.Error(t, err)
}
