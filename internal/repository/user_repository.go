package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campusride/campus/internal/store"
	"github.com/campusride/campus/shared/cqrs"
	"github.com/campusride/campus/shared/models"
	sharedredis "github.com/campusride/campus/shared/redis"
	"github.com/campusride/campus/shared/utils"
	"github.com/shopspring/decimal"
)

const userViewKeyPrefix = "user:view:"

// UserRepository owns the users collection. Profiles are cached in Redis;
// balances never are, since they change under the ledger's row lock.
type UserRepository struct {
	store store.Store
	cache *sharedredis.ViewCache[models.UserView]
	now   func() time.Time
}

func NewUserRepository(st store.Store, cache *sharedredis.ViewCache[models.UserView]) *UserRepository {
	return &UserRepository{store: st, cache: cache, now: time.Now}
}

// Ensure creates the account with a zero balance if it does not exist yet.
// Concurrent first accesses race on Create; the loser's conflict is ignored.
func (r *UserRepository) Ensure(ctx context.Context, id cqrs.Identity) (created bool, err error) {
	now := r.now().UTC()
	err = r.store.Create(ctx, models.UsersCollection, id.UserID, models.User{
		Email:         id.Email,
		Name:          utils.DisplayName(id.Name, id.Email),
		WalletBalance: decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create account: %w", err)
	}
	return true, nil
}

func (r *UserRepository) Get(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := r.store.Get(ctx, models.UsersCollection, userID, &u); err != nil {
		return nil, err
	}
	u.ID = userID
	return &u, nil
}

// Profile returns the cached profile view, reading through to the store on a miss.
func (r *UserRepository) Profile(ctx context.Context, userID string) (*models.UserView, error) {
	return r.cache.GetOrLoad(ctx, userViewKeyPrefix+userID, func(ctx context.Context) (*models.UserView, error) {
		u, err := r.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &models.UserView{ID: userID, Email: u.Email, Name: u.Name, Role: u.Role}, nil
	})
}

// DisplayName resolves the name shown on rides and listings: the session
// name, then the stored profile, then the email local part.
func (r *UserRepository) DisplayName(ctx context.Context, id cqrs.Identity) string {
	if id.Name != "" {
		return id.Name
	}
	if view, err := r.Profile(ctx, id.UserID); err == nil && view.Name != "" {
		return view.Name
	}
	return utils.DisplayName("", id.Email)
}
