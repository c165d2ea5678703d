package repository

import "context"

// Repositories groups the repositories bound to one connection or transaction.
type Repositories interface {
	Vehicles() VehicleRepository
	Rides() RideRepository
	Users() UserRepository
	Transactions() TransactionRepository
}

// Store is the persistence entry point of the services.
//
// Reads through the embedded Repositories run outside any transaction.
// WithinTx runs fn as one unit of work: either every write made through the
// Repositories passed to fn is committed, or none is. A non-nil error from
// fn rolls the unit back and is returned unchanged.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error
}
