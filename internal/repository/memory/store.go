// Package memory provides an in-process implementation of repository.Store.
// It backs the service when STORAGE_DRIVER=memory and is the store used by
// the service and handler tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"evride/internal/domain"
	"evride/internal/repository"
)

// Store is an in-memory repository.Store.
//
// Units of work are serialized. Each one runs against a private copy of the
// data that replaces the shared copy only when fn succeeds. Code running
// inside WithinTx must write through the Repositories it was given; writing
// through the Store itself from inside fn deadlocks.
type Store struct {
	writer sync.Mutex   // held by every writer, including whole units of work
	mu     sync.RWMutex // guards data
	data   *dataset
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// dataset is one consistent snapshot of every table. Stored rides are never
// mutated in place, so snapshots may share ride pointers.
type dataset struct {
	vehicles map[string]domain.Vehicle
	rides    map[string]*domain.Ride
	users    map[string]domain.User
	txns     []domain.WalletTransaction
}

func newDataset() *dataset {
	return &dataset{
		vehicles: make(map[string]domain.Vehicle),
		rides:    make(map[string]*domain.Ride),
		users:    make(map[string]domain.User),
	}
}

func (d *dataset) clone() *dataset {
	return &dataset{
		vehicles: maps.Clone(d.vehicles),
		rides:    maps.Clone(d.rides),
		users:    maps.Clone(d.users),
		txns:     slices.Clone(d.txns),
	}
}

// guard serializes access to a dataset. The zero guard does nothing and is
// used inside a unit of work, which already owns its private dataset.
type guard struct {
	writer *sync.Mutex
	mu     *sync.RWMutex
}

func (g guard) read() func() {
	if g.mu == nil {
		return func() {}
	}
	g.mu.RLock()
	return g.mu.RUnlock
}

func (g guard) write() func() {
	if g.mu == nil {
		return func() {}
	}
	g.writer.Lock()
	g.mu.Lock()
	return func() {
		g.mu.Unlock()
		g.writer.Unlock()
	}
}

func (s *Store) guard() guard {
	return guard{writer: &s.writer, mu: &s.mu}
}

// Vehicles returns the vehicle repository.
func (s *Store) Vehicles() repository.VehicleRepository {
	return &VehicleRepository{d: s.data, g: s.guard()}
}

// Rides returns the ride repository.
func (s *Store) Rides() repository.RideRepository {
	return &RideRepository{d: s.data, g: s.guard()}
}

// Users returns the user repository.
func (s *Store) Users() repository.UserRepository {
	return &UserRepository{d: s.data, g: s.guard()}
}

// Transactions returns the wallet ledger repository.
func (s *Store) Transactions() repository.TransactionRepository {
	return &TransactionRepository{d: s.data, g: s.guard()}
}

// WithinTx runs fn as one unit of work.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r repository.Repositories) error) error {
	s.writer.Lock()
	defer s.writer.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx, txRepositories{d: work}); err != nil {
		return err
	}

	s.mu.Lock()
	*s.data = *work
	s.mu.Unlock()
	return nil
}

type txRepositories struct {
	d *dataset
}

func (t txRepositories) Vehicles() repository.VehicleRepository {
	return &VehicleRepository{d: t.d}
}

func (t txRepositories) Rides() repository.RideRepository {
	return &RideRepository{d: t.d}
}

func (t txRepositories) Users() repository.UserRepository {
	return &UserRepository{d: t.d}
}

func (t txRepositories) Transactions() repository.TransactionRepository {
	return &TransactionRepository{d: t.d}
}

// Ensure interfaces are satisfied.
var (
	_ repository.Store        = (*Store)(nil)
	_ repository.Repositories = txRepositories{}
)
