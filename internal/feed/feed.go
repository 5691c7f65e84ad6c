// Package feed pushes live snapshots of a user's collections. A subscriber
// gets one snapshot per topic on subscribe and a fresh one after every
// committed change to a collection the topic reads.
package feed

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/campusride/campus/internal/store"
	"github.com/campusride/campus/shared/cqrs"
	"github.com/campusride/campus/shared/models"
)

type Topic string

const (
	TopicBalance      Topic = "balance"
	TopicTransactions Topic = "transactions"
	TopicRidePool     Topic = "ridePool"
	TopicMyRides      Topic = "myRides"
	TopicScootyPool   Topic = "scootyPool"
	TopicMyRentals    Topic = "myRentals"
	TopicMyListings   Topic = "myListings"
)

// AllTopics is the default subscription.
var AllTopics = []Topic{
	TopicBalance, TopicTransactions,
	TopicRidePool, TopicMyRides,
	TopicScootyPool, TopicMyRentals, TopicMyListings,
}

var topicCollections = map[Topic]string{
	TopicBalance:      models.UsersCollection,
	TopicTransactions: models.TransactionsCollection,
	TopicRidePool:     models.RideRequestsCollection,
	TopicMyRides:      models.RideRequestsCollection,
	TopicScootyPool:   models.ScootyRentalsCollection,
	TopicMyRentals:    models.ScootyRentalsCollection,
	TopicMyListings:   models.ScootyRentalsCollection,
}

// ParseTopics validates topic names. An empty list selects every topic.
func ParseTopics(names []string) ([]Topic, error) {
	if len(names) == 0 {
		return AllTopics, nil
	}
	out := make([]Topic, 0, len(names))
	seen := make(map[Topic]bool, len(names))
	for _, n := range names {
		t := Topic(n)
		if _, ok := topicCollections[t]; !ok {
			return nil, fmt.Errorf("unknown topic %q", n)
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}

// Snapshot is the full current value of one topic.
type Snapshot struct {
	Topic Topic     `json:"topic"`
	Data  any       `json:"data"`
	At    time.Time `json:"at"`
}

type LedgerReader interface {
	GetBalance(ctx context.Context, q cqrs.GetBalanceQuery) (*models.WalletView, error)
	ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.TransactionView, error)
}

type RideReader interface {
	ListOpenRides(ctx context.Context, q cqrs.ListOpenRidesQuery) ([]models.RideRequestView, error)
	ListMyRides(ctx context.Context, q cqrs.ListMyRidesQuery) ([]models.RideRequestView, error)
}

type RentalReader interface {
	ListAvailable(ctx context.Context, q cqrs.ListAvailableScootiesQuery) ([]models.ScootyView, error)
	ListMyRentals(ctx context.Context, q cqrs.ListMyRentalsQuery) ([]models.ScootyView, error)
	ListMyListings(ctx context.Context, q cqrs.ListMyListingsQuery) ([]models.ScootyView, error)
}

type Feed struct {
	store   store.Store
	ledger  LedgerReader
	rides   RideReader
	rentals RentalReader
}

func New(st store.Store, ledger LedgerReader, rides RideReader, rentals RentalReader) *Feed {
	return &Feed{store: st, ledger: ledger, rides: rides, rentals: rentals}
}

// Subscription delivers snapshots until Close or until the parent context
// ends. Closing it releases the observer only; it never touches data.
type Subscription struct {
	out    chan Snapshot
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// C is closed once the subscription stops.
func (s *Subscription) C() <-chan Snapshot { return s.out }

// Close stops delivery and waits for the pump to exit. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

// Subscribe starts a subscription for userID. An empty userID is a
// session-less observer and receives empty snapshots.
func (f *Feed) Subscribe(ctx context.Context, userID string, topics ...Topic) (*Subscription, error) {
	if len(topics) == 0 {
		topics = AllTopics
	}
	collections := make([]string, 0, len(topics))
	for _, t := range topics {
		c, ok := topicCollections[t]
		if !ok {
			return nil, fmt.Errorf("unknown topic %q", t)
		}
		collections = append(collections, c)
	}

	ctx, cancel := context.WithCancel(ctx)
	w, err := f.store.Watch(ctx, collections...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to watch collections: %w", err)
	}

	sub := &Subscription{
		out:    make(chan Snapshot, len(topics)),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go f.pump(ctx, sub, w, userID, topics)
	return sub, nil
}

func (f *Feed) pump(ctx context.Context, sub *Subscription, w *store.Watcher, userID string, topics []Topic) {
	defer close(sub.done)
	defer close(sub.out)
	defer w.Close()

	for _, t := range topics {
		if !f.send(ctx, sub, userID, t) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Done():
			return
		case <-w.Ready():
		}

		changed := make(map[string]bool)
		for _, c := range w.Take() {
			changed[c] = true
		}
		for _, t := range topics {
			if !changed[topicCollections[t]] {
				continue
			}
			if !f.send(ctx, sub, userID, t) {
				return
			}
		}
	}
}

func (f *Feed) send(ctx context.Context, sub *Subscription, userID string, t Topic) bool {
	data, err := f.snapshot(ctx, userID, t)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		log.Printf("Feed: snapshot %s for user=%s failed: %v", t, userID, err)
		return true
	}
	select {
	case sub.out <- Snapshot{Topic: t, Data: data, At: time.Now().UTC()}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (f *Feed) snapshot(ctx context.Context, userID string, t Topic) (any, error) {
	switch t {
	case TopicBalance:
		return f.ledger.GetBalance(ctx, cqrs.GetBalanceQuery{UserID: userID})
	case TopicTransactions:
		return f.ledger.ListTransactions(ctx, cqrs.ListTransactionsQuery{UserID: userID})
	case TopicRidePool:
		return f.rides.ListOpenRides(ctx, cqrs.ListOpenRidesQuery{RequestingUserID: userID})
	case TopicMyRides:
		return f.rides.ListMyRides(ctx, cqrs.ListMyRidesQuery{UserID: userID})
	case TopicScootyPool:
		return f.rentals.ListAvailable(ctx, cqrs.ListAvailableScootiesQuery{RequestingUserID: userID})
	case TopicMyRentals:
		return f.rentals.ListMyRentals(ctx, cqrs.ListMyRentalsQuery{UserID: userID})
	case TopicMyListings:
		return f.rentals.ListMyListings(ctx, cqrs.ListMyListingsQuery{UserID: userID})
	}
	return nil, fmt.Errorf("unknown topic %q", t)
}
