package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/service-scheduling/internal/model"
	"github.com/iliyamo/service-scheduling/internal/utils"
)

func newAccountRepo(t *testing.T) (*AccountRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAccountRepo(db), mock
}

func TestAccountCreateHashesPassword(t *testing.T) {
	repo, mock := newAccountRepo(t)
	mock.ExpectExec(`INSERT INTO accounts`).
		WithArgs("admin@example.com", "Admin", sqlmock.AnyArg(), "administrator").
		WillReturnResult(sqlmock.NewResult(5, 1))

	id, err := repo.Create(context.Background(), "  Admin@Example.com ", "Admin", "changeme123", model.RoleAdministrator, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountCreateDuplicateEmail(t *testing.T) {
	repo, mock := newAccountRepo(t)
	mock.ExpectExec(`INSERT INTO accounts`).
		WillReturnError(&mysql.MySQLError{Number: erDupEntry, Message: "Duplicate entry 'a@b.c' for key 'uq_accounts_email'"})

	_, err := repo.Create(context.Background(), "a@b.c", "A", "changeme123", model.RoleCustomer, bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestAccountCreateRejectsWeakPassword(t *testing.T) {
	repo, mock := newAccountRepo(t)

	_, err := repo.Create(context.Background(), "a@b.c", "A", "short", model.RoleCustomer, bcrypt.MinCost)
	assert.ErrorIs(t, err, utils.ErrWeakPassword)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountGetByEmail(t *testing.T) {
	repo, mock := newAccountRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE email=\?`).
		WithArgs("c@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "display_name", "password_hash", "role", "created_at", "updated_at"}).
			AddRow(9, "c@example.com", "C", "$2a$04$hash", "worker", now, now))

	acc, err := repo.GetByEmail(context.Background(), "C@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), acc.ID)
	assert.Equal(t, model.RoleWorker, acc.Role)
	assert.Equal(t, "$2a$04$hash", acc.PasswordHash)
}

func TestAccountGetForUpdateMissing(t *testing.T) {
	repo, mock := newAccountRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id=\? FOR UPDATE`).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	tx, err := repo.DB.Begin()
	require.NoError(t, err)
	_, ok, err := repo.GetForUpdateTx(context.Background(), tx, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}
