package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/campusride/campus/internal/store"
	"github.com/campusride/campus/shared/models"
	"github.com/shopspring/decimal"
)

type demoUser struct {
	id, email, name string
}

var (
	demoOwners = []demoUser{
		{"demo-owner-1", "rahul@campus.edu", "Rahul"},
		{"demo-owner-2", "priya@campus.edu", "Priya"},
		{"demo-owner-3", "arjun@campus.edu", "Arjun"},
	}
	demoRiders = []demoUser{
		{"demo-rider-1", "ananya@campus.edu", "Ananya"},
		{"demo-rider-2", "kabir@campus.edu", "Kabir"},
	}
)

// Seed fills an empty store with sample listings, pending ride requests and
// demo wallets. It writes through the store contract only, so every
// invariant holds for the seeded data: each wallet balance equals the signed
// sum of its transactions. Seeding a store twice fails with ErrAlreadyExists.
func Seed(ctx context.Context, st store.Store, now time.Time) error {
	return st.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for i, u := range append(append([]demoUser{}, demoOwners...), demoRiders...) {
			if err := seedWallet(ctx, tx, u, now.Add(-time.Duration(len(demoOwners)+len(demoRiders)-i)*time.Hour)); err != nil {
				return err
			}
		}

		scooties := []struct {
			model string
			price int64
		}{
			{"Honda Activa", 50},
			{"TVS Jupiter", 45},
			{"Suzuki Access", 55},
		}
		for i, sc := range scooties {
			owner := demoOwners[i]
			doc := models.ScootyRental{
				OwnerID:      owner.id,
				OwnerName:    owner.name,
				Model:        sc.model,
				PricePerHour: decimal.NewFromInt(sc.price),
				Status:       models.ScootyAvailable,
				CreatedAt:    now,
			}
			if err := tx.Create(ctx, models.ScootyRentalsCollection, fmt.Sprintf("seed-scooty-%d", i+1), doc); err != nil {
				return err
			}
		}

		rides := []struct{ pickup, dropoff string }{
			{"University Main Gate", "Engineering Block"},
			{"Girls Hostel", "Library"},
		}
		for i, r := range rides {
			rider := demoRiders[i]
			doc := models.RideRequest{
				RiderID:   rider.id,
				RiderName: rider.name,
				Pickup:    r.pickup,
				Dropoff:   r.dropoff,
				Status:    models.RidePending,
				Timestamp: now.Add(time.Duration(i) * time.Minute),
			}
			if err := tx.Create(ctx, models.RideRequestsCollection, fmt.Sprintf("seed-ride-%d", i+1), doc); err != nil {
				return err
			}
		}
		return nil
	})
}

func seedWallet(ctx context.Context, tx store.Tx, u demoUser, start time.Time) error {
	history := []struct {
		typ         models.TransactionType
		amount      int64
		description string
	}{
		{models.TransactionTopUp, 500, "Wallet top-up"},
		{models.TransactionPayment, 120, "Cafeteria purchase"},
		{models.TransactionPayment, 50, "Stationery store"},
	}

	balance := decimal.Zero
	ts := start
	for i, h := range history {
		ts = start.Add(time.Duration(i) * time.Minute)
		t := models.Transaction{
			UserID:      u.id,
			Amount:      decimal.NewFromInt(h.amount),
			Type:        h.typ,
			Description: h.description,
			Timestamp:   ts,
		}
		balance = balance.Add(t.Signed())
		if err := tx.Create(ctx, models.TransactionsCollection, fmt.Sprintf("seed-%s-tx-%d", u.id, i+1), t); err != nil {
			return err
		}
	}

	return tx.Create(ctx, models.UsersCollection, u.id, models.User{
		Email:         u.email,
		Name:          u.name,
		WalletBalance: balance,
		CreatedAt:     start,
		UpdatedAt:     ts,
	})
}
