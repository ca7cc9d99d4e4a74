package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/service-scheduling/internal/model"
)

// LockSlotTx takes the exclusive lock for a (date, time) key.  The lock is a
// row in slot_locks keyed by the slot; the upsert creates it on first use
// and otherwise touches it, so in both cases the caller ends up holding an
// exclusive row lock until the transaction ends.  Concurrent callers for the
// same key queue behind it for at most innodb_lock_wait_timeout seconds.
//
// Lock rows are never deleted.  They carry no booking state; a lock row for
// a key with no bookings is harmless.
func (r *BookingRepo) LockSlotTx(ctx context.Context, tx *sql.Tx, key model.SlotKey) error {
	const q = `INSERT INTO slot_locks (slot_date, time_slot, locked_at)
               VALUES (?, ?, UTC_TIMESTAMP(6))
               ON DUPLICATE KEY UPDATE locked_at = UTC_TIMESTAMP(6)`
	_, err := tx.ExecContext(ctx, q, key.Date, key.Time)
	return err
}
