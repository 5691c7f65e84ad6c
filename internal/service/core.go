// Package service assembles one process worth of stores, repositories and
// CQRS services. Everything is held by Core; nothing is global.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/campusride/campus/internal/command"
	"github.com/campusride/campus/internal/config"
	"github.com/campusride/campus/internal/feed"
	"github.com/campusride/campus/internal/query"
	"github.com/campusride/campus/internal/repository"
	"github.com/campusride/campus/internal/store"
	"github.com/campusride/campus/internal/store/memory"
	"github.com/campusride/campus/internal/store/postgres"
	"github.com/campusride/campus/shared/events"
	"github.com/campusride/campus/shared/models"
	sharedredis "github.com/campusride/campus/shared/redis"
)

const auditGroup = "ledger-audit-group"

type Core struct {
	selector *store.Selector
	store    store.Store
	redis    *sharedredis.Client
	consumer string

	Ledger        *command.LedgerCommandService
	LedgerQueries *query.LedgerQueryService
	Rides         *command.RideCommandService
	RideQueries   *query.RideQueryService
	Rentals       *command.RentalCommandService
	RentalQueries *query.RentalQueryService
	Feed          *feed.Feed
}

// New resolves the backing store and wires the services on top of it.
// Redis is optional: without it events are dropped and profiles are not cached.
func New(ctx context.Context, cfg config.Config) (*Core, error) {
	selector := store.NewSelector(openDurable(cfg), fallbackStore(cfg.SeedFallback), cfg.ProbeTimeout)
	st, err := selector.Store(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to select store: %w", err)
	}

	core := &Core{selector: selector, store: st, consumer: cfg.ConsumerName}

	var publisher command.EventPublisher = events.Discard{}
	if cfg.RedisAddr != "" {
		client, err := sharedredis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Printf("Redis unavailable, events disabled: %v", err)
		} else {
			core.redis = client
			publisher = events.NewPublisher(client.Client)
		}
	}

	var cache *sharedredis.ViewCache[models.UserView]
	if core.redis != nil {
		cache = sharedredis.NewViewCache[models.UserView](core.redis.Client, cfg.ProfileTTL)
	}

	users := repository.NewUserRepository(st, cache)
	txs := repository.NewTransactionRepository(st)
	rides := repository.NewRideRepository(st)
	scooties := repository.NewScootyRepository(st)

	core.Ledger = command.NewLedgerCommandService(users, txs, publisher)
	core.LedgerQueries = query.NewLedgerQueryService(users, txs)
	core.Rides = command.NewRideCommandService(rides, users, publisher)
	core.RideQueries = query.NewRideQueryService(rides)
	core.Rentals = command.NewRentalCommandService(scooties, users, core.Ledger, publisher)
	core.RentalQueries = query.NewRentalQueryService(scooties)
	core.Feed = feed.New(st, core.LedgerQueries, core.RideQueries, core.RentalQueries)

	return core, nil
}

func openDurable(cfg config.Config) store.Store {
	if cfg.DatabaseURL == "" {
		return nil
	}
	pg, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Printf("Failed to open postgres: %v", err)
		return nil
	}
	return pg
}

func fallbackStore(seed bool) func(ctx context.Context) (store.Store, error) {
	return func(ctx context.Context) (store.Store, error) {
		st := memory.New()
		if !seed {
			return st, nil
		}
		if err := memory.Seed(ctx, st, time.Now()); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to seed memory store: %w", err)
		}
		return st, nil
	}
}

func (c *Core) Mode() store.Mode { return c.selector.Mode() }

// Store exposes the selected backend.
func (c *Core) Store() store.Store { return c.store }

// RunAudit consumes ledger events and reconciles the affected wallets until
// ctx ends. It returns immediately when Redis is not configured.
func (c *Core) RunAudit(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	subscriber := events.NewSubscriber(c.redis.Client, events.SubscriberConfig{
		Group:    auditGroup,
		Consumer: c.consumer,
		Stream:   events.LedgerEventsStream,
		Handler:  c.LedgerQueries.HandleLedgerEvent,
	})
	return subscriber.Start(ctx)
}

func (c *Core) Close() error {
	var errList []error
	if err := c.store.Close(); err != nil {
		errList = append(errList, fmt.Errorf("close store: %w", err))
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errList = append(errList, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errList...)
}
