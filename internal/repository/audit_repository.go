package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/service-scheduling/internal/audit"
)

// AuditRepo answers the consistency audit with set-based queries instead of
// loading every row.
type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// FindViolations implements audit.Checker.
func (r *AuditRepo) FindViolations(ctx context.Context) ([]audit.Violation, error) {
	var out []audit.Violation

	rows, err := r.db.QueryContext(ctx,
		`SELECT w.id, w.account_id, w.status, a.role
         FROM worker_profiles w JOIN accounts a ON a.id = w.account_id
         WHERE (w.status = 'active' AND a.role <> 'worker')
            OR (w.status = 'inactive' AND a.role <> 'customer')
         ORDER BY w.id`)
	if err != nil {
		return nil, fmt.Errorf("role pairing query: %w", err)
	}
	for rows.Next() {
		var (
			id, accountID uint64
			status, role  string
		)
		if err := rows.Scan(&id, &accountID, &status, &role); err != nil {
			rows.Close()
			return nil, err
		}
		rule := audit.RuleActiveRole
		if status == "inactive" {
			rule = audit.RuleInactiveRole
		}
		out = append(out, audit.Violation{
			Rule:    rule,
			Subject: fmt.Sprintf("worker_profile:%d", id),
			Detail:  fmt.Sprintf("status=%s account=%d role=%s", status, accountID, role),
		})
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT DATE_FORMAT(booking_date, '%Y-%m-%d'), time_slot, GROUP_CONCAT(id ORDER BY id)
         FROM bookings WHERE status <> 'cancelled'
         GROUP BY booking_date, time_slot HAVING COUNT(*) > 1`)
	if err != nil {
		return nil, fmt.Errorf("slot exclusivity query: %w", err)
	}
	for rows.Next() {
		var date, clock, ids string
		if err := rows.Scan(&date, &clock, &ids); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, audit.Violation{
			Rule:    audit.RuleDuplicateSlot,
			Subject: "slot:" + date + " " + clock,
			Detail:  "bookings=[" + ids + "]",
		})
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT b.id, b.worker_profile_id
         FROM bookings b LEFT JOIN worker_profiles w ON w.id = b.worker_profile_id
         WHERE b.worker_profile_id IS NOT NULL AND w.id IS NULL
         ORDER BY b.id`)
	if err != nil {
		return nil, fmt.Errorf("worker reference query: %w", err)
	}
	for rows.Next() {
		var id, workerID uint64
		if err := rows.Scan(&id, &workerID); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, audit.Violation{
			Rule:    audit.RuleDanglingWorker,
			Subject: fmt.Sprintf("booking:%d", id),
			Detail:  fmt.Sprintf("worker_profile_id=%d does not exist", workerID),
		})
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return out, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}
