package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Options describes how to reach MySQL.
type Options struct {
	User               string
	Pass               string
	Host               string
	Port               string
	Name               string
	LockWaitTimeoutSec int
	MaxOpenConns       int
}

// DSN builds the driver connection string.
func (o Options) DSN() string {
	auth := o.User
	if o.Pass != "" {
		auth = fmt.Sprintf("%s:%s", o.User, o.Pass)
	}
	lockWait := o.LockWaitTimeoutSec
	if lockWait <= 0 {
		lockWait = 5
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	// clientFoundRows: UPDATE reports matched rows, not changed rows
	// innodb_lock_wait_timeout is sent as a session variable and bounds every row lock wait
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true&innodb_lock_wait_timeout=%d",
		auth, o.Host, o.Port, o.Name, lockWait)
}

// Open connects to MySQL and verifies the connection.
func Open(o Options) (*sql.DB, error) {
	db, err := sql.Open("mysql", o.DSN())
	if err != nil {
		return nil, err
	}

	// Pool settings
	maxOpen := o.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
