package events

import "time"

// Event types
const (
	AccountOpened      = "account.opened"
	TransactionCreated = "transaction.created"

	RideRequested = "ride.requested"
	RideAccepted  = "ride.accepted"
	RideCompleted = "ride.completed"
	RideCancelled = "ride.cancelled"

	ScootyListed    = "scooty.listed"
	ScootyRented    = "scooty.rented"
	ScootyReturned  = "scooty.returned"
	ScootyWithdrawn = "scooty.withdrawn"
	ScootyRelisted  = "scooty.relisted"
)

// Stream names
const (
	LedgerEventsStream = "ledger.events"
	RideEventsStream   = "ride.events"
	RentalEventsStream = "rental.events"
)

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Ledger events
type AccountOpenedEvent struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type TransactionCreatedEvent struct {
	TransactionID string `json:"transactionId"`
	UserID        string `json:"userId"`
	Amount        string `json:"amount"`
	Type          string `json:"type"`
	NewBalance    string `json:"newBalance"`
}

// Ride events
type RideEvent struct {
	RequestID string `json:"requestId"`
	RiderID   string `json:"riderId"`
	DriverID  string `json:"driverId,omitempty"`
	Status    string `json:"status"`
}

// Rental events
type ScootyEvent struct {
	ScootyID    string `json:"scootyId"`
	OwnerID     string `json:"ownerId"`
	RenterID    string `json:"renterId,omitempty"`
	Status      string `json:"status"`
	TotalCost   string `json:"totalCost,omitempty"`
	RentalHours int    `json:"rentalHours,omitempty"`
}
