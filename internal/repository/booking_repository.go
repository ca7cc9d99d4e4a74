package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/service-scheduling/internal/model"
)

// BookingRepo provides data access to the bookings table.  The table has a
// generated active_slot_key column that is NULL for cancelled rows and
// carries a UNIQUE index, so the database itself refuses a second
// non-cancelled booking for the same (date, time).  Dates are read back as
// YYYY-MM-DD strings.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, requester_id, service_code, DATE_FORMAT(booking_date, '%Y-%m-%d'), time_slot, status,
       worker_profile_id, row_version, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (model.Booking, error) {
    var (
        b      model.Booking
        status string
        worker sql.NullInt64
    )
    err := row.Scan(&b.ID, &b.RequesterID, &b.ServiceCode, &b.Date, &b.TimeSlot, &status,
        &worker, &b.RowVersion, &b.CreatedAt, &b.UpdatedAt)
    b.Status = model.BookingStatus(status)
    if worker.Valid {
        id := uint64(worker.Int64)
        b.WorkerProfileID = &id
    }
    return b, err
}

func scanBookings(rows *sql.Rows) ([]model.Booking, error) {
    defer rows.Close()
    var out []model.Booking
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// GetTx reads a booking without locking it.
func (r *BookingRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Booking, bool, error) {
    return found(scanBooking(tx.QueryRowContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)))
}

// GetForUpdateTx reads a booking and locks its row.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Booking, bool, error) {
    return found(scanBooking(tx.QueryRowContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id)))
}

// ActiveInSlotTx returns the non-cancelled bookings for key.  Callers hold
// the slot lock, so at READ COMMITTED this sees every booking committed by
// an earlier holder of the same lock.
func (r *BookingRepo) ActiveInSlotTx(ctx context.Context, tx *sql.Tx, key model.SlotKey) ([]model.Booking, error) {
    rows, err := tx.QueryContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings
         WHERE booking_date = ? AND time_slot = ? AND status <> 'cancelled'
         ORDER BY id`, key.Date, key.Time)
    if err != nil {
        return nil, err
    }
    return scanBookings(rows)
}

// InsertTx inserts a booking and populates the generated ID, RowVersion and
// timestamps on b.
func (r *BookingRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
    const q = `INSERT INTO bookings (requester_id, service_code, booking_date, time_slot, status, row_version)
               VALUES (?, ?, ?, ?, ?, 1)`
    result, err := tx.ExecContext(ctx, q, b.RequesterID, b.ServiceCode, b.Date, b.TimeSlot, string(b.Status))
    if err != nil {
        return translateBookingWrite(err)
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    fresh, ok, err := r.GetTx(ctx, tx, uint64(id))
    if err != nil {
        return err
    }
    if !ok {
        return ErrNoRows
    }
    *b = fresh
    return nil
}

// MoveTx rewrites the slot columns only.
func (r *BookingRepo) MoveTx(ctx context.Context, tx *sql.Tx, id uint64, key model.SlotKey) error {
    res, err := tx.ExecContext(ctx,
        `UPDATE bookings SET booking_date = ?, time_slot = ?, row_version = row_version + 1 WHERE id = ?`,
        key.Date, key.Time, id)
    return expectRow(res, translateBookingWrite(err))
}

// SetStatusTx writes the status column only.
func (r *BookingRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.BookingStatus) error {
    res, err := tx.ExecContext(ctx,
        `UPDATE bookings SET status = ?, row_version = row_version + 1 WHERE id = ?`,
        string(status), id)
    return expectRow(res, translateBookingWrite(err))
}

// AssignWorkerTx points the booking at a worker profile.
func (r *BookingRepo) AssignWorkerTx(ctx context.Context, tx *sql.Tx, id, profileID uint64) error {
    res, err := tx.ExecContext(ctx,
        `UPDATE bookings SET worker_profile_id = ?, row_version = row_version + 1 WHERE id = ?`,
        profileID, id)
    return expectRow(res, err)
}

// ClearWorkerTx unassigns profileID from every booking that references it
// and returns the number of bookings changed.
func (r *BookingRepo) ClearWorkerTx(ctx context.Context, tx *sql.Tx, profileID uint64) (int64, error) {
    res, err := tx.ExecContext(ctx,
        `UPDATE bookings SET worker_profile_id = NULL, row_version = row_version + 1 WHERE worker_profile_id = ?`,
        profileID)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// DeleteTx physically removes a booking.
func (r *BookingRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
    res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
    return expectRow(res, err)
}

// ListByDateTx returns every booking on date ordered by time then id.
func (r *BookingRepo) ListByDateTx(ctx context.Context, tx *sql.Tx, date string) ([]model.Booking, error) {
    rows, err := tx.QueryContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings WHERE booking_date = ? ORDER BY time_slot, id`, date)
    if err != nil {
        return nil, err
    }
    return scanBookings(rows)
}

// ListByRequesterTx returns an account's bookings, newest slot first.
func (r *BookingRepo) ListByRequesterTx(ctx context.Context, tx *sql.Tx, accountID uint64) ([]model.Booking, error) {
    rows, err := tx.QueryContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings WHERE requester_id = ? ORDER BY booking_date DESC, time_slot DESC, id DESC`,
        accountID)
    if err != nil {
        return nil, err
    }
    return scanBookings(rows)
}

type bookingStore struct {
    repo *BookingRepo
    tx   *sql.Tx
}

func (s bookingStore) Get(ctx context.Context, id uint64) (model.Booking, bool, error) {
    return s.repo.GetTx(ctx, s.tx, id)
}

func (s bookingStore) GetForUpdate(ctx context.Context, id uint64) (model.Booking, bool, error) {
    return s.repo.GetForUpdateTx(ctx, s.tx, id)
}

func (s bookingStore) LockSlot(ctx context.Context, key model.SlotKey) error {
    return s.repo.LockSlotTx(ctx, s.tx, key)
}

func (s bookingStore) ActiveInSlot(ctx context.Context, key model.SlotKey) ([]model.Booking, error) {
    return s.repo.ActiveInSlotTx(ctx, s.tx, key)
}

func (s bookingStore) Insert(ctx context.Context, b *model.Booking) error {
    return s.repo.InsertTx(ctx, s.tx, b)
}

func (s bookingStore) Move(ctx context.Context, id uint64, key model.SlotKey) error {
    return s.repo.MoveTx(ctx, s.tx, id, key)
}

func (s bookingStore) SetStatus(ctx context.Context, id uint64, status model.BookingStatus) error {
    return s.repo.SetStatusTx(ctx, s.tx, id, status)
}

func (s bookingStore) AssignWorker(ctx context.Context, id uint64, profileID uint64) error {
    return s.repo.AssignWorkerTx(ctx, s.tx, id, profileID)
}

func (s bookingStore) ClearWorker(ctx context.Context, profileID uint64) (int64, error) {
    return s.repo.ClearWorkerTx(ctx, s.tx, profileID)
}

func (s bookingStore) Delete(ctx context.Context, id uint64) error {
    return s.repo.DeleteTx(ctx, s.tx, id)
}

func (s bookingStore) ListByDate(ctx context.Context, date string) ([]model.Booking, error) {
    return s.repo.ListByDateTx(ctx, s.tx, date)
}

func (s bookingStore) ListByRequester(ctx context.Context, accountID uint64) ([]model.Booking, error) {
    return s.repo.ListByRequesterTx(ctx, s.tx, accountID)
}
