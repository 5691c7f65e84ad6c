package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Stored documents and API payloads carry money as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Collection names of the document store.
const (
	UsersCollection         = "users"
	TransactionsCollection  = "transactions"
	RideRequestsCollection  = "rideRequests"
	ScootyRentalsCollection = "scootyRentals"
)

type TransactionType string

const (
	TransactionTopUp   TransactionType = "topup"
	TransactionPayment TransactionType = "payment"
	TransactionRefund  TransactionType = "refund"
	TransactionRental  TransactionType = "rental"
)

// Credit reports whether the transaction type increases the balance.
func (t TransactionType) Credit() bool {
	return t == TransactionTopUp || t == TransactionRefund
}

type RideStatus string

const (
	RidePending   RideStatus = "pending"
	RideAccepted  RideStatus = "accepted"
	RideCompleted RideStatus = "completed"
	RideCancelled RideStatus = "cancelled"
)

type ScootyStatus string

const (
	ScootyAvailable   ScootyStatus = "available"
	ScootyRented      ScootyStatus = "rented"
	ScootyUnavailable ScootyStatus = "unavailable"
)

// User is the users/{uid} document. It owns the wallet balance, which is a
// cached projection of the user's transaction log.
type User struct {
	ID            string          `json:"-"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	WalletBalance decimal.Decimal `json:"walletBalance"`
	Role          string          `json:"role,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Transaction is the transactions/{id} document. Immutable once written.
type Transaction struct {
	ID          string          `json:"-"`
	UserID      string          `json:"userId"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Signed returns the amount with the sign it contributes to the balance.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type.Credit() {
		return t.Amount
	}
	return t.Amount.Neg()
}

// RideRequest is the rideRequests/{id} document.
type RideRequest struct {
	ID          string     `json:"-"`
	RiderID     string     `json:"riderId"`
	RiderName   string     `json:"riderName"`
	Pickup      string     `json:"pickup"`
	Dropoff     string     `json:"dropoff"`
	Status      RideStatus `json:"status"`
	Timestamp   time.Time  `json:"timestamp"`
	DriverID    string     `json:"driverId,omitempty"`
	DriverName  string     `json:"driverName,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

// ScootyRental is the scootyRentals/{id} document. The renter fields are set
// together on rent and cleared together on return.
type ScootyRental struct {
	ID                string          `json:"-"`
	OwnerID           string          `json:"ownerId"`
	OwnerName         string          `json:"ownerName"`
	Model             string          `json:"model"`
	PricePerHour      decimal.Decimal `json:"pricePerHour"`
	Status            ScootyStatus    `json:"status"`
	CurrentRenterID   string          `json:"currentRenterId,omitempty"`
	CurrentRenterName string          `json:"currentRenterName,omitempty"`
	RentalStart       *time.Time      `json:"rentalStart,omitempty"`
	RentalEnd         *time.Time      `json:"rentalEnd,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// ClearRenter drops every renter field at once.
func (s *ScootyRental) ClearRenter() {
	s.CurrentRenterID = ""
	s.CurrentRenterName = ""
	s.RentalStart = nil
	s.RentalEnd = nil
}
