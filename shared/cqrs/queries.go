package cqrs

// ---------- Ledger queries ----------

// GetBalanceQuery fetches the cached balance of the requesting user's wallet.
type GetBalanceQuery struct {
	UserID string
}

// ListTransactionsQuery fetches the requesting user's transaction log, newest first.
type ListTransactionsQuery struct {
	UserID string
}

// ReconcileQuery recomputes a wallet balance from its transaction log.
type ReconcileQuery struct {
	UserID string
}

// ---------- Ride queries ----------

// ListOpenRidesQuery fetches pending requests created by other riders.
type ListOpenRidesQuery struct {
	RequestingUserID string
}

// ListMyRidesQuery fetches requests the user created or drives.
type ListMyRidesQuery struct {
	UserID string
}

// ---------- Rental queries ----------

// ListAvailableScootiesQuery fetches listings other users offer for rent.
type ListAvailableScootiesQuery struct {
	RequestingUserID string
}

type ListMyRentalsQuery struct {
	UserID string
}

type ListMyListingsQuery struct {
	UserID string
}
