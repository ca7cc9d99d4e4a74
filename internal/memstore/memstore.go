// Package memstore is an in-memory implementation of service.Scope.  Scopes
// are serialized by a single mutex and run against a cloned copy of the
// state that is swapped in only when the unit of work succeeds, so a failed
// or panicking scope leaves nothing behind.  It backs the test suites and the
// APP_STORE=memory development mode.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/service-scheduling/internal/model"
	"github.com/iliyamo/service-scheduling/internal/service"
)

// Operation names accepted by InjectFault.
const (
	OpSetRole          = "accounts.set_role"
	OpWorkerInsert     = "workers.insert"
	OpWorkerReactivate = "workers.reactivate"
	OpWorkerSetStatus  = "workers.set_status"
	OpWorkerDelete     = "workers.delete"
	OpBookingInsert    = "bookings.insert"
	OpBookingMove      = "bookings.move"
	OpBookingSetStatus = "bookings.set_status"
	OpBookingAssign    = "bookings.assign_worker"
	OpBookingClear     = "bookings.clear_worker"
	OpBookingDelete    = "bookings.delete"
)

var (
	errRowMissing = errors.New("row does not exist")
	// ErrDuplicateAccount mirrors the unique key on worker_profiles.account_id.
	ErrDuplicateAccount = errors.New("duplicate worker profile for account")
)

type state struct {
	accounts map[uint64]model.Account
	workers  map[uint64]model.WorkerProfile
	bookings map[uint64]model.Booking

	nextAccountID uint64
	nextWorkerID  uint64
	nextBookingID uint64
}

func newState() state {
	return state{
		accounts:      map[uint64]model.Account{},
		workers:       map[uint64]model.WorkerProfile{},
		bookings:      map[uint64]model.Booking{},
		nextAccountID: 1,
		nextWorkerID:  1,
		nextBookingID: 1,
	}
}

func (s state) clone() state {
	cp := s
	cp.accounts = make(map[uint64]model.Account, len(s.accounts))
	for k, v := range s.accounts {
		cp.accounts[k] = v
	}
	cp.workers = make(map[uint64]model.WorkerProfile, len(s.workers))
	for k, v := range s.workers {
		cp.workers[k] = cloneWorker(v)
	}
	cp.bookings = make(map[uint64]model.Booking, len(s.bookings))
	for k, v := range s.bookings {
		cp.bookings[k] = cloneBooking(v)
	}
	return cp
}

func cloneWorker(p model.WorkerProfile) model.WorkerProfile {
	if p.Compensation != nil {
		c := *p.Compensation
		p.Compensation = &c
	}
	return p
}

func cloneBooking(b model.Booking) model.Booking {
	if b.WorkerProfileID != nil {
		id := *b.WorkerProfileID
		b.WorkerProfileID = &id
	}
	return b
}

// Store holds the committed state.
type Store struct {
	mu     sync.Mutex
	state  state
	faults map[string]error
	nowFn  func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		state:  newState(),
		faults: map[string]error{},
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// InjectFault makes every later call to op fail with err until ClearFaults.
func (s *Store) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// ClearFaults removes every injected fault.
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = map[string]error{}
}

// Run executes work against a private copy of the state.  The copy replaces
// the committed state only when work returns nil and ctx is still live.
func (s *Store) Run(ctx context.Context, work func(ctx context.Context, tx service.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{store: s, state: s.state.clone(), now: s.nowFn()}
	if err := work(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit aborted: %w", err)
	}
	s.state = t.state
	return nil
}

// AddAccount stores acc directly, assigning an id when acc.ID is zero.
func (s *Store) AddAccount(acc model.Account) model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc.ID == 0 {
		acc.ID = s.state.nextAccountID
	}
	if acc.ID >= s.state.nextAccountID {
		s.state.nextAccountID = acc.ID + 1
	}
	if acc.Role == "" {
		acc.Role = model.RoleCustomer
	}
	now := s.nowFn()
	acc.CreatedAt, acc.UpdatedAt = now, now
	s.state.accounts[acc.ID] = acc
	return acc
}

// AddBooking stores b directly, keeping b.ID when set.  It bypasses the slot
// checks and exists for fixtures.
func (s *Store) AddBooking(b model.Booking) model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.state.nextBookingID
	}
	if b.ID >= s.state.nextBookingID {
		s.state.nextBookingID = b.ID + 1
	}
	if b.Status == "" {
		b.Status = model.BookingPending
	}
	now := s.nowFn()
	b.CreatedAt, b.UpdatedAt = now, now
	b.RowVersion = 1
	s.state.bookings[b.ID] = cloneBooking(b)
	return b
}

// Account returns the committed account.
func (s *Store) Account(id uint64) (model.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.state.accounts[id]
	return a, ok
}

// Profile returns the committed profile.
func (s *Store) Profile(id uint64) (model.WorkerProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.workers[id]
	return cloneWorker(p), ok
}

// ProfilesForAccount returns every committed profile linked to accountID.
func (s *Store) ProfilesForAccount(accountID uint64) []model.WorkerProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WorkerProfile
	for _, p := range s.state.workers {
		if p.AccountID == accountID {
			out = append(out, cloneWorker(p))
		}
	}
	return out
}

// Booking returns the committed booking.
func (s *Store) Booking(id uint64) (model.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.state.bookings[id]
	return cloneBooking(b), ok
}

type tx struct {
	store *Store
	state state
	now   time.Time
}

func (t *tx) Accounts() service.AccountStore { return accounts{t} }
func (t *tx) Workers() service.WorkerStore   { return workers{t} }
func (t *tx) Bookings() service.BookingStore { return bookings{t} }

func (t *tx) fault(op string) error {
	if err, ok := t.store.faults[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type accounts struct{ t *tx }

func (a accounts) Get(_ context.Context, id uint64) (model.Account, bool, error) {
	acc, ok := a.t.state.accounts[id]
	return acc, ok, nil
}

func (a accounts) GetForUpdate(ctx context.Context, id uint64) (model.Account, bool, error) {
	return a.Get(ctx, id)
}

func (a accounts) SetRole(_ context.Context, id uint64, role model.Role) error {
	if err := a.t.fault(OpSetRole); err != nil {
		return err
	}
	acc, ok := a.t.state.accounts[id]
	if !ok {
		return errRowMissing
	}
	acc.Role = role
	acc.UpdatedAt = a.t.now
	a.t.state.accounts[id] = acc
	return nil
}

type workers struct{ t *tx }

func (w workers) Get(_ context.Context, id uint64) (model.WorkerProfile, bool, error) {
	p, ok := w.t.state.workers[id]
	return cloneWorker(p), ok, nil
}

func (w workers) GetForUpdate(ctx context.Context, id uint64) (model.WorkerProfile, bool, error) {
	return w.Get(ctx, id)
}

func (w workers) GetByAccountForUpdate(_ context.Context, accountID uint64) (model.WorkerProfile, bool, error) {
	for _, p := range w.t.state.workers {
		if p.AccountID == accountID {
			return cloneWorker(p), true, nil
		}
	}
	return model.WorkerProfile{}, false, nil
}

func (w workers) List(_ context.Context) ([]model.WorkerProfile, error) {
	out := make([]model.WorkerProfile, 0, len(w.t.state.workers))
	for _, p := range w.t.state.workers {
		out = append(out, cloneWorker(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (w workers) Insert(_ context.Context, p *model.WorkerProfile) error {
	if err := w.t.fault(OpWorkerInsert); err != nil {
		return err
	}
	for _, existing := range w.t.state.workers {
		if existing.AccountID == p.AccountID {
			return ErrDuplicateAccount
		}
	}
	p.ID = w.t.state.nextWorkerID
	w.t.state.nextWorkerID++
	p.Status = model.WorkerActive
	p.RowVersion = 1
	p.CreatedAt, p.UpdatedAt = w.t.now, w.t.now
	w.t.state.workers[p.ID] = cloneWorker(*p)
	return nil
}

func (w workers) Reactivate(_ context.Context, id uint64, name, position string, compensation *int64) error {
	if err := w.t.fault(OpWorkerReactivate); err != nil {
		return err
	}
	p, ok := w.t.state.workers[id]
	if !ok {
		return errRowMissing
	}
	p.Name, p.Position = name, position
	p.Compensation = nil
	if compensation != nil {
		c := *compensation
		p.Compensation = &c
	}
	p.Status = model.WorkerActive
	p.RowVersion++
	p.UpdatedAt = w.t.now
	w.t.state.workers[id] = p
	return nil
}

func (w workers) SetStatus(_ context.Context, id uint64, status model.WorkerStatus) error {
	if err := w.t.fault(OpWorkerSetStatus); err != nil {
		return err
	}
	p, ok := w.t.state.workers[id]
	if !ok {
		return errRowMissing
	}
	p.Status = status
	p.RowVersion++
	p.UpdatedAt = w.t.now
	w.t.state.workers[id] = p
	return nil
}

func (w workers) Delete(_ context.Context, id uint64) error {
	if err := w.t.fault(OpWorkerDelete); err != nil {
		return err
	}
	if _, ok := w.t.state.workers[id]; !ok {
		return errRowMissing
	}
	delete(w.t.state.workers, id)
	return nil
}

type bookings struct{ t *tx }

func (b bookings) Get(_ context.Context, id uint64) (model.Booking, bool, error) {
	bk, ok := b.t.state.bookings[id]
	return cloneBooking(bk), ok, nil
}

func (b bookings) GetForUpdate(ctx context.Context, id uint64) (model.Booking, bool, error) {
	return b.Get(ctx, id)
}

// LockSlot is a no-op: the store mutex already serializes every scope.
func (b bookings) LockSlot(context.Context, model.SlotKey) error { return nil }

func (b bookings) ActiveInSlot(_ context.Context, key model.SlotKey) ([]model.Booking, error) {
	var out []model.Booking
	for _, bk := range b.t.state.bookings {
		if bk.Slot() == key && bk.Status.Occupies() {
			out = append(out, cloneBooking(bk))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// occupied mirrors the unique index on active_slot_key.
func (b bookings) occupied(key model.SlotKey, except uint64) bool {
	for _, bk := range b.t.state.bookings {
		if bk.ID != except && bk.Slot() == key && bk.Status.Occupies() {
			return true
		}
	}
	return false
}

func (b bookings) Insert(_ context.Context, bk *model.Booking) error {
	if err := b.t.fault(OpBookingInsert); err != nil {
		return err
	}
	if bk.Status.Occupies() && b.occupied(bk.Slot(), 0) {
		return service.ErrSlotConflict
	}
	bk.ID = b.t.state.nextBookingID
	b.t.state.nextBookingID++
	bk.RowVersion = 1
	bk.CreatedAt, bk.UpdatedAt = b.t.now, b.t.now
	b.t.state.bookings[bk.ID] = cloneBooking(*bk)
	return nil
}

func (b bookings) Move(_ context.Context, id uint64, key model.SlotKey) error {
	if err := b.t.fault(OpBookingMove); err != nil {
		return err
	}
	bk, ok := b.t.state.bookings[id]
	if !ok {
		return errRowMissing
	}
	if bk.Status.Occupies() && b.occupied(key, id) {
		return service.ErrSlotConflict
	}
	bk.Date, bk.TimeSlot = key.Date, key.Time
	bk.RowVersion++
	bk.UpdatedAt = b.t.now
	b.t.state.bookings[id] = bk
	return nil
}

func (b bookings) SetStatus(_ context.Context, id uint64, status model.BookingStatus) error {
	if err := b.t.fault(OpBookingSetStatus); err != nil {
		return err
	}
	bk, ok := b.t.state.bookings[id]
	if !ok {
		return errRowMissing
	}
	if status.Occupies() && !bk.Status.Occupies() && b.occupied(bk.Slot(), id) {
		return service.ErrSlotConflict
	}
	bk.Status = status
	bk.RowVersion++
	bk.UpdatedAt = b.t.now
	b.t.state.bookings[id] = bk
	return nil
}

func (b bookings) AssignWorker(_ context.Context, id uint64, profileID uint64) error {
	if err := b.t.fault(OpBookingAssign); err != nil {
		return err
	}
	bk, ok := b.t.state.bookings[id]
	if !ok {
		return errRowMissing
	}
	if _, ok := b.t.state.workers[profileID]; !ok {
		return errRowMissing
	}
	pid := profileID
	bk.WorkerProfileID = &pid
	bk.RowVersion++
	bk.UpdatedAt = b.t.now
	b.t.state.bookings[id] = bk
	return nil
}

func (b bookings) ClearWorker(_ context.Context, profileID uint64) (int64, error) {
	if err := b.t.fault(OpBookingClear); err != nil {
		return 0, err
	}
	var n int64
	for id, bk := range b.t.state.bookings {
		if bk.WorkerProfileID != nil && *bk.WorkerProfileID == profileID {
			bk.WorkerProfileID = nil
			bk.RowVersion++
			bk.UpdatedAt = b.t.now
			b.t.state.bookings[id] = bk
			n++
		}
	}
	return n, nil
}

func (b bookings) Delete(_ context.Context, id uint64) error {
	if err := b.t.fault(OpBookingDelete); err != nil {
		return err
	}
	if _, ok := b.t.state.bookings[id]; !ok {
		return errRowMissing
	}
	delete(b.t.state.bookings, id)
	return nil
}

func (b bookings) ListByDate(_ context.Context, date string) ([]model.Booking, error) {
	var out []model.Booking
	for _, bk := range b.t.state.bookings {
		if bk.Date == date {
			out = append(out, cloneBooking(bk))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeSlot != out[j].TimeSlot {
			return out[i].TimeSlot < out[j].TimeSlot
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (b bookings) ListByRequester(_ context.Context, accountID uint64) ([]model.Booking, error) {
	var out []model.Booking
	for _, bk := range b.t.state.bookings {
		if bk.RequesterID == accountID {
			out = append(out, cloneBooking(bk))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
