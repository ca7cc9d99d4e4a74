package model

import "time"

// WorkerStatus is the employment status of a worker profile.
type WorkerStatus string

const (
    WorkerActive   WorkerStatus = "active"
    WorkerInactive WorkerStatus = "inactive"
)

// Valid reports whether s is active or inactive.
func (s WorkerStatus) Valid() bool {
    return s == WorkerActive || s == WorkerInactive
}

// RoleFor returns the account role that must accompany a profile in
// status s: active profiles belong to workers, inactive ones to customers.
func (s WorkerStatus) RoleFor() Role {
    if s == WorkerActive {
        return RoleWorker
    }
    return RoleCustomer
}

// WorkerProfile links an account to its employment record.  At most one
// profile exists per account (worker_profiles.account_id is UNIQUE).  The
// profile references the account weakly: deleting a profile never deletes
// the account.
//
// Fields:
//  ID           – primary key identifier.
//  AccountID    – linked account.
//  Name         – display name used on schedules.
//  Position     – job title, e.g. "mechanic".
//  Status       – active or inactive.
//  Compensation – optional, non-negative, minor currency units.
//  RowVersion   – incremented on every write to the row.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type WorkerProfile struct {
    ID           uint64       `json:"id"`                     // worker_profiles.id
    AccountID    uint64       `json:"account_id"`             // worker_profiles.account_id
    Name         string       `json:"name"`                   // worker_profiles.display_name
    Position     string       `json:"position"`               // worker_profiles.position
    Status       WorkerStatus `json:"status"`                 // worker_profiles.status
    Compensation *int64       `json:"compensation,omitempty"` // worker_profiles.compensation (nullable)
    RowVersion   uint64       `json:"row_version"`            // worker_profiles.row_version
    CreatedAt    time.Time    `json:"created_at"`             // worker_profiles.created_at
    UpdatedAt    time.Time    `json:"updated_at"`             // worker_profiles.updated_at
}
