package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by Migrate.  Every statement is idempotent.
//
// bookings.active_slot_key is NULL for cancelled rows, so the UNIQUE index
// over it allows any number of cancelled bookings per slot but only one
// live one.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
        id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        email         VARCHAR(255)    NOT NULL,
        display_name  VARCHAR(255)    NOT NULL DEFAULT '',
        password_hash VARCHAR(255)    NOT NULL DEFAULT '',
        role          ENUM('customer','worker','administrator') NOT NULL DEFAULT 'customer',
        created_at    DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
        updated_at    DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
        PRIMARY KEY (id),
        UNIQUE KEY uq_accounts_email (email)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS worker_profiles (
        id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        account_id    BIGINT UNSIGNED NOT NULL,
        display_name  VARCHAR(255)    NOT NULL,
        position      VARCHAR(128)    NOT NULL,
        status        ENUM('active','inactive') NOT NULL DEFAULT 'active',
        compensation  BIGINT          NULL,
        row_version   BIGINT UNSIGNED NOT NULL DEFAULT 1,
        created_at    DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
        updated_at    DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
        PRIMARY KEY (id),
        UNIQUE KEY uq_worker_profiles_account (account_id),
        CONSTRAINT chk_worker_profiles_compensation CHECK (compensation IS NULL OR compensation >= 0),
        CONSTRAINT fk_worker_profiles_account FOREIGN KEY (account_id) REFERENCES accounts (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
        id                BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        requester_id      BIGINT UNSIGNED NOT NULL,
        service_code      VARCHAR(64)     NOT NULL,
        booking_date      DATE            NOT NULL,
        time_slot         CHAR(5)         NOT NULL,
        status            ENUM('pending','in_progress','completed','cancelled') NOT NULL DEFAULT 'pending',
        worker_profile_id BIGINT UNSIGNED NULL,
        row_version       BIGINT UNSIGNED NOT NULL DEFAULT 1,
        created_at        DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
        updated_at        DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
        active_slot_key   VARCHAR(16) GENERATED ALWAYS AS
                          (IF(status = 'cancelled', NULL, CONCAT(booking_date, ' ', time_slot))) STORED,
        PRIMARY KEY (id),
        UNIQUE KEY uq_bookings_active_slot (active_slot_key),
        KEY idx_bookings_slot (booking_date, time_slot),
        KEY idx_bookings_requester (requester_id),
        KEY idx_bookings_worker (worker_profile_id),
        CONSTRAINT fk_bookings_requester FOREIGN KEY (requester_id) REFERENCES accounts (id),
        CONSTRAINT fk_bookings_worker FOREIGN KEY (worker_profile_id) REFERENCES worker_profiles (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS slot_locks (
        slot_date  DATE        NOT NULL,
        time_slot  CHAR(5)     NOT NULL,
        locked_at  DATETIME(6) NOT NULL,
        PRIMARY KEY (slot_date, time_slot)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS catalog_services (
        code         VARCHAR(64)  NOT NULL,
        name         VARCHAR(255) NOT NULL,
        duration_min INT          NOT NULL DEFAULT 60,
        active       TINYINT(1)   NOT NULL DEFAULT 1,
        created_at   DATETIME(3)  NULL,
        updated_at   DATETIME(3)  NULL,
        PRIMARY KEY (code)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing table.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
