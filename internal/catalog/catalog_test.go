package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	gdb, err := OpenGorm(db, false)
	require.NoError(t, err)
	return NewRepo(gdb), mock
}

func TestRepoLookupFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()
	mock.ExpectQuery("SELECT \\* FROM `catalog_services` WHERE code = \\? AND active = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "duration_min", "active", "created_at", "updated_at"}).
			AddRow("oil-change", "Oil change", 45, true, now, now))

	code, ok, err := repo.Lookup(context.Background(), "  Oil-Change ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "oil-change", code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoLookupMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM `catalog_services`").
		WillReturnRows(sqlmock.NewRows([]string{"code"}))

	_, ok, err := repo.Lookup(context.Background(), "haircut")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepoLookupError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM `catalog_services`").WillReturnError(assert.AnError)

	_, _, err := repo.Lookup(context.Background(), "oil-change")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestStatic(t *testing.T) {
	s := NewStatic(DefaultCodes()...)

	code, ok, err := s.Lookup(context.Background(), "INSPECTION")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "inspection", code)

	_, ok, _ = s.Lookup(context.Background(), "haircut")
	assert.False(t, ok)

	list, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, len(Defaults))
	assert.Equal(t, "consultation", list[0].Code)
}
