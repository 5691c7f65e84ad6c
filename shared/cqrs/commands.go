package cqrs

import "github.com/shopspring/decimal"

// Identity is the session supplied by the external identity provider.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// ---------- Ledger commands ----------

type TopUpCommand struct {
	Identity
	Amount         decimal.Decimal
	IdempotencyKey string
}

type ChargeCommand struct {
	Identity
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
}

type RefundCommand struct {
	UserID      string
	Amount      decimal.Decimal
	Description string
}

// ---------- Ride commands ----------

type RequestRideCommand struct {
	Identity
	Pickup  string
	Dropoff string
}

type OfferRideCommand struct {
	Identity
	RequestID string
}

type CompleteRideCommand struct {
	RequestID        string
	RequestingUserID string
}

type CancelRideCommand struct {
	RequestID        string
	RequestingUserID string
}

// ---------- Rental commands ----------

type ListScootyCommand struct {
	Identity
	Model        string
	PricePerHour decimal.Decimal
}

type RentScootyCommand struct {
	Identity
	ScootyID string
	Hours    int
}

type ReturnScootyCommand struct {
	ScootyID         string
	RequestingUserID string
}

type WithdrawScootyCommand struct {
	ScootyID         string
	RequestingUserID string
}

type RelistScootyCommand struct {
	ScootyID         string
	RequestingUserID string
}
