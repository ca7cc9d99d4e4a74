package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/service-scheduling/internal/catalog"
	"github.com/iliyamo/service-scheduling/internal/memstore"
	"github.com/iliyamo/service-scheduling/internal/model"
	"github.com/iliyamo/service-scheduling/internal/service"
)

type published struct {
	key     string
	payload any
}

// recorder captures events in publish order.
type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(_ context.Context, key string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{key: key, payload: payload})
	return nil
}

func (r *recorder) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.key
	}
	return out
}

type fixture struct {
	store   *memstore.Store
	events  *recorder
	workers *service.WorkerRoleSync
	guard   *service.SlotReservationGuard
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	rec := &recorder{}
	return &fixture{
		store:   store,
		events:  rec,
		workers: service.NewWorkerRoleSync(store, rec),
		guard:   service.NewSlotReservationGuard(store, catalog.NewStatic("oil-change", "inspection"), rec),
	}
}

func (f *fixture) customer(t *testing.T, id uint64) model.Account {
	t.Helper()
	return f.store.AddAccount(model.Account{ID: id, Email: "user@example.com", Role: model.RoleCustomer})
}

func (f *fixture) role(t *testing.T, id uint64) model.Role {
	t.Helper()
	acc, ok := f.store.Account(id)
	require.True(t, ok, "account %d missing", id)
	return acc.Role
}

func comp(v int64) *int64 { return &v }

// requireConsistent checks that the account role matches the status of its
// profile, or is customer when no profile exists.
func requireConsistent(t *testing.T, store *memstore.Store, accountID uint64) {
	t.Helper()
	acc, ok := store.Account(accountID)
	require.True(t, ok)
	profiles := store.ProfilesForAccount(accountID)
	require.LessOrEqual(t, len(profiles), 1, "account %d has %d profiles", accountID, len(profiles))
	if len(profiles) == 0 {
		require.Equal(t, model.RoleCustomer, acc.Role)
		return
	}
	require.Equal(t, profiles[0].Status.RoleFor(), acc.Role,
		"profile %s paired with role %s", profiles[0].Status, acc.Role)
}
