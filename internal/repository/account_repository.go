package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/service-scheduling/internal/model"
	"github.com/iliyamo/service-scheduling/internal/utils"
)

const accountColumns = "id,email,display_name,password_hash,role,created_at,updated_at"

type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

func scanAccount(row interface{ Scan(...any) error }) (model.Account, error) {
	var a model.Account
	var role string
	err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &a.PasswordHash, &role, &a.CreatedAt, &a.UpdatedAt)
	a.Role = model.Role(role)
	return a, err
}

// Create inserts an account and returns its ID.  Only the seeder creates
// accounts; sign-up belongs to the auth service.
func (r *AccountRepo) Create(ctx context.Context, email, displayName, password string, role model.Role, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO accounts (email, display_name, password_hash, role) VALUES (?,?,?,?)",
		email, displayName, hash, string(role))
	if err != nil {
		if mysqlNumber(err) == erDupEntry {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1", email))
}

// GetTx fetches an account by id without locking.
func (r *AccountRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Account, bool, error) {
	return found(scanAccount(tx.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1", id)))
}

// GetForUpdateTx fetches an account and holds its row lock until the
// transaction ends.
func (r *AccountRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Account, bool, error) {
	return found(scanAccount(tx.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id=? FOR UPDATE", id)))
}

// SetRoleTx writes the role column only.
func (r *AccountRepo) SetRoleTx(ctx context.Context, tx *sql.Tx, id uint64, role model.Role) error {
	res, err := tx.ExecContext(ctx, "UPDATE accounts SET role=? WHERE id=?", string(role), id)
	return expectRow(res, err)
}

// found converts sql.ErrNoRows into found=false.
func found[T any](v T, err error) (T, bool, error) {
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v, true, nil
}

// expectRow fails with ErrNoRows when an UPDATE or DELETE matched nothing.
// The DSN sets clientFoundRows so an UPDATE that rewrites identical values
// still reports the matched row.
func expectRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}

type accountStore struct {
	repo *AccountRepo
	tx   *sql.Tx
}

func (s accountStore) Get(ctx context.Context, id uint64) (model.Account, bool, error) {
	return s.repo.GetTx(ctx, s.tx, id)
}

func (s accountStore) GetForUpdate(ctx context.Context, id uint64) (model.Account, bool, error) {
	return s.repo.GetForUpdateTx(ctx, s.tx, id)
}

func (s accountStore) SetRole(ctx context.Context, id uint64, role model.Role) error {
	return s.repo.SetRoleTx(ctx, s.tx, id, role)
}
