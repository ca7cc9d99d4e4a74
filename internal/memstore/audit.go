package memstore

import (
	"context"

	"github.com/iliyamo/service-scheduling/internal/audit"
	"github.com/iliyamo/service-scheduling/internal/model"
)

// FindViolations evaluates the committed state.
func (s *Store) FindViolations(ctx context.Context) ([]audit.Violation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	snap := audit.Snapshot{
		Accounts: make([]model.Account, 0, len(s.state.accounts)),
		Workers:  make([]model.WorkerProfile, 0, len(s.state.workers)),
		Bookings: make([]model.Booking, 0, len(s.state.bookings)),
	}
	for _, a := range s.state.accounts {
		snap.Accounts = append(snap.Accounts, a)
	}
	for _, p := range s.state.workers {
		snap.Workers = append(snap.Workers, cloneWorker(p))
	}
	for _, b := range s.state.bookings {
		snap.Bookings = append(snap.Bookings, cloneBooking(b))
	}
	s.mu.Unlock()
	return audit.Evaluate(snap), nil
}
