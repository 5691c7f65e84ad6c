package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletView is the read projection of a user's wallet.
type WalletView struct {
	UserID  string          `json:"userId"`
	Balance decimal.Decimal `json:"balance"`
}

// TransactionView is the read projection of a transaction.
// UserID is populated for ownership checks but never serialised to the API response.
type TransactionView struct {
	ID          string          `json:"id"`
	UserID      string          `json:"-"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
}

// RideRequestView is the read projection of a ride request.
type RideRequestView struct {
	ID          string     `json:"id"`
	RiderID     string     `json:"riderId"`
	RiderName   string     `json:"riderName"`
	Pickup      string     `json:"pickup"`
	Dropoff     string     `json:"dropoff"`
	Status      RideStatus `json:"status"`
	Timestamp   time.Time  `json:"timestamp"`
	DriverID    string     `json:"driverId,omitempty"`
	DriverName  string     `json:"driverName,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// ScootyView is the read projection of a scooty listing.
type ScootyView struct {
	ID                string          `json:"id"`
	OwnerID           string          `json:"ownerId"`
	OwnerName         string          `json:"ownerName"`
	Model             string          `json:"model"`
	PricePerHour      decimal.Decimal `json:"pricePerHour"`
	Status            ScootyStatus    `json:"status"`
	CurrentRenterID   string          `json:"currentRenterId,omitempty"`
	CurrentRenterName string          `json:"currentRenterName,omitempty"`
	RentalStart       *time.Time      `json:"rentalStart,omitempty"`
	RentalEnd         *time.Time      `json:"rentalEnd,omitempty"`
}

// UserView is the cached profile used to resolve display names.
type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
}

func TransactionToView(t *Transaction) *TransactionView {
	return &TransactionView{
		ID:          t.ID,
		UserID:      t.UserID,
		Amount:      t.Amount,
		Type:        t.Type,
		Description: t.Description,
		Timestamp:   t.Timestamp,
	}
}

func RideToView(r *RideRequest) *RideRequestView {
	return &RideRequestView{
		ID:          r.ID,
		RiderID:     r.RiderID,
		RiderName:   r.RiderName,
		Pickup:      r.Pickup,
		Dropoff:     r.Dropoff,
		Status:      r.Status,
		Timestamp:   r.Timestamp,
		DriverID:    r.DriverID,
		DriverName:  r.DriverName,
		CompletedAt: r.CompletedAt,
	}
}

func ScootyToView(s *ScootyRental) *ScootyView {
	return &ScootyView{
		ID:                s.ID,
		OwnerID:           s.OwnerID,
		OwnerName:         s.OwnerName,
		Model:             s.Model,
		PricePerHour:      s.PricePerHour,
		Status:            s.Status,
		CurrentRenterID:   s.CurrentRenterID,
		CurrentRenterName: s.CurrentRenterName,
		RentalStart:       s.RentalStart,
		RentalEnd:         s.RentalEnd,
	}
}

// ReconciliationView compares a wallet's cached balance with the signed sum
// of its transaction log.
type ReconciliationView struct {
	UserID     string          `json:"userId"`
	Balance    decimal.Decimal `json:"balance"`
	LogSum     decimal.Decimal `json:"logSum"`
	Entries    int             `json:"entries"`
	Consistent bool            `json:"consistent"`
}
