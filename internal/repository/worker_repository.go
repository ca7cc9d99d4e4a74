package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/service-scheduling/internal/model"
)

// WorkerRepo provides data access to the worker_profiles table.  Every
// UPDATE names its columns explicitly and bumps row_version.
type WorkerRepo struct {
	db *sql.DB
}

// NewWorkerRepo returns a new WorkerRepo bound to the provided database.
func NewWorkerRepo(db *sql.DB) *WorkerRepo { return &WorkerRepo{db: db} }

const workerColumns = `id, account_id, display_name, position, status, compensation, row_version, created_at, updated_at`

func scanWorker(row interface{ Scan(...any) error }) (model.WorkerProfile, error) {
	var (
		p      model.WorkerProfile
		status string
		comp   sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.AccountID, &p.Name, &p.Position, &status, &comp, &p.RowVersion, &p.CreatedAt, &p.UpdatedAt)
	p.Status = model.WorkerStatus(status)
	if comp.Valid {
		c := comp.Int64
		p.Compensation = &c
	}
	return p, err
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// GetTx reads a profile without locking it.
func (r *WorkerRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (model.WorkerProfile, bool, error) {
	return found(scanWorker(tx.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM worker_profiles WHERE id = ?`, id)))
}

// GetForUpdateTx reads a profile and locks its row.
func (r *WorkerRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.WorkerProfile, bool, error) {
	return found(scanWorker(tx.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM worker_profiles WHERE id = ? FOR UPDATE`, id)))
}

// GetByAccountForUpdateTx locks the profile linked to accountID.  When no
// profile exists the unique index gap is locked instead, which blocks a
// concurrent insert for the same account.
func (r *WorkerRepo) GetByAccountForUpdateTx(ctx context.Context, tx *sql.Tx, accountID uint64) (model.WorkerProfile, bool, error) {
	return found(scanWorker(tx.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM worker_profiles WHERE account_id = ? FOR UPDATE`, accountID)))
}

// ListTx returns every profile ordered by id.
func (r *WorkerRepo) ListTx(ctx context.Context, tx *sql.Tx) ([]model.WorkerProfile, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+workerColumns+` FROM worker_profiles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.WorkerProfile
	for rows.Next() {
		p, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertTx inserts an active profile and populates ID, RowVersion and the
// timestamps on p.
func (r *WorkerRepo) InsertTx(ctx context.Context, tx *sql.Tx, p *model.WorkerProfile) error {
	const q = `INSERT INTO worker_profiles (account_id, display_name, position, status, compensation, row_version)
               VALUES (?, ?, ?, 'active', ?, 1)`
	res, err := tx.ExecContext(ctx, q, p.AccountID, p.Name, p.Position, nullableInt64(p.Compensation))
	if err != nil {
		return translateProfileWrite(err)
	}
	id, err := res.LastInsertId()
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
	*p = fresh
	return nil
}

// ReactivateTx rewrites the descriptive fields of a reused profile and sets
// it active.
func (r *WorkerRepo) ReactivateTx(ctx context.Context, tx *sql.Tx, id uint64, name, position string, compensation *int64) error {
	const q = `UPDATE worker_profiles
               SET display_name = ?, position = ?, compensation = ?, status = 'active', row_version = row_version + 1
               WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, name, position, nullableInt64(compensation), id)
	return expectRow(res, err)
}

// SetStatusTx writes the status column only.
func (r *WorkerRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.WorkerStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE worker_profiles SET status = ?, row_version = row_version + 1 WHERE id = ?`,
		string(status), id)
	return expectRow(res, err)
}

// DeleteTx removes the profile row.  Booking references must already be
// cleared.
func (r *WorkerRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM worker_profiles WHERE id = ?`, id)
	return expectRow(res, err)
}

type workerStore struct {
	repo *WorkerRepo
	tx   *sql.Tx
}

func (s workerStore) Get(ctx context.Context, id uint64) (model.WorkerProfile, bool, error) {
	return s.repo.GetTx(ctx, s.tx, id)
}

func (s workerStore) GetForUpdate(ctx context.Context, id uint64) (model.WorkerProfile, bool, error) {
	return s.repo.GetForUpdateTx(ctx, s.tx, id)
}

func (s workerStore) GetByAccountForUpdate(ctx context.Context, accountID uint64) (model.WorkerProfile, bool, error) {
	return s.repo.GetByAccountForUpdateTx(ctx, s.tx, accountID)
}

func (s workerStore) List(ctx context.Context) ([]model.WorkerProfile, error) {
	return s.repo.ListTx(ctx, s.tx)
}

func (s workerStore) Insert(ctx context.Context, p *model.WorkerProfile) error {
	return s.repo.InsertTx(ctx, s.tx, p)
}

func (s workerStore) Reactivate(ctx context.Context, id uint64, name, position string, compensation *int64) error {
	return s.repo.ReactivateTx(ctx, s.tx, id, name, position, compensation)
}

func (s workerStore) SetStatus(ctx context.Context, id uint64, status model.WorkerStatus) error {
	return s.repo.SetStatusTx(ctx, s.tx, id, status)
}

func (s workerStore) Delete(ctx context.Context, id uint64) error {
	return s.repo.DeleteTx(ctx, s.tx, id)
}
