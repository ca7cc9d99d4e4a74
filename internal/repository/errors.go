// Package repository is the MySQL implementation of the scheduling stores.
// Repositories expose ...Tx methods that run on a caller supplied *sql.Tx;
// Scope owns the transaction and binds the repositories to it.
//
// Driver errors are classified here so the rest of the code never inspects
// MySQL error numbers.  Duplicate keys on the active-slot index become
// service slot conflicts; deadlocks and lock wait timeouts are contention
// and make Scope re-run the unit of work.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/service-scheduling/internal/service"
)

// MySQL server error numbers used by the repositories.
const (
	erDupEntry        = 1062
	erLockWaitTimeout = 1205
	erLockDeadlock    = 1213
)

// Index names referenced when translating duplicate key errors.
const (
	keyActiveSlot     = "uq_bookings_active_slot"
	keyProfileAccount = "uq_worker_profiles_account"
)

// ErrNoRows is returned by write methods that matched no row.
var ErrNoRows = errors.New("no rows affected")

// ErrDuplicateProfile is returned when a second profile is inserted for an
// account.  The validator normally prevents it; seeing it means a concurrent
// promotion won the unique key.
var ErrDuplicateProfile = errors.New("worker profile already exists for account")

func mysqlNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isContention reports a deadlock or lock wait timeout.  InnoDB has already
// rolled the statement (deadlock: the whole transaction) back.
func isContention(err error) bool {
	switch mysqlNumber(err) {
	case erLockDeadlock, erLockWaitTimeout:
		return true
	}
	return false
}

func isDuplicateOn(err error, key string) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != erDupEntry {
		return false
	}
	return strings.Contains(me.Message, key)
}

// translateBookingWrite maps a duplicate on the active-slot index to a
// service slot conflict.
func translateBookingWrite(err error) error {
	if err == nil {
		return nil
	}
	if isDuplicateOn(err, keyActiveSlot) {
		return &service.Error{Kind: service.KindSlotConflict, Message: "slot already booked", Err: err}
	}
	return err
}

func translateProfileWrite(err error) error {
	if err == nil {
		return nil
	}
	if isDuplicateOn(err, keyProfileAccount) {
		return &service.Error{Kind: service.KindAlreadyAssigned, Message: "account already has a worker profile", Err: ErrDuplicateProfile}
	}
	return err
}
