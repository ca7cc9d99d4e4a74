package model

import "time"

// Role is the enumerated role stored on an account.  The scheduling
// subsystem only ever moves an account between RoleCustomer and RoleWorker;
// RoleAdministrator is assigned out of band and never rewritten here.
type Role string

const (
    RoleCustomer      Role = "customer"
    RoleWorker        Role = "worker"
    RoleAdministrator Role = "administrator"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
    switch r {
    case RoleCustomer, RoleWorker, RoleAdministrator:
        return true
    }
    return false
}

// Account represents an identity record as stored in the `accounts` table.
// Credential material (PasswordHash) belongs to the auth collaborator; the
// scheduling code reads the role and contact fields only.
//
// Fields:
//  ID           – primary key identifier of the account.
//  Email        – unique email address.
//  DisplayName  – human readable name shown to staff.
//  PasswordHash – bcrypt hashed password, written by the seeder only.
//  Role         – customer, worker or administrator.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type Account struct {
    ID           uint64    `json:"id"`            // accounts.id
    Email        string    `json:"email"`         // accounts.email
    DisplayName  string    `json:"display_name"`  // accounts.display_name
    PasswordHash string    `json:"-"`             // accounts.password_hash
    Role         Role      `json:"role"`          // accounts.role
    CreatedAt    time.Time `json:"created_at"`    // accounts.created_at
    UpdatedAt    time.Time `json:"updated_at"`    // accounts.updated_at
}
