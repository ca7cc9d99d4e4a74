// Package audit periodically scans the store for rows that break the
// role/profile pairing, slot exclusivity or worker references.  It only
// reads and reports; it never repairs.
package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/service-scheduling/internal/logger"
	"github.com/iliyamo/service-scheduling/internal/model"
)

// Rule names reported in a Violation.
const (
	RuleActiveRole      = "active_profile_requires_worker_role"
	RuleInactiveRole    = "inactive_profile_requires_customer_role"
	RuleDuplicateSlot   = "one_active_booking_per_slot"
	RuleDanglingWorker  = "booking_worker_must_exist"
	RuleDuplicateWorker = "one_profile_per_account"
)

// Violation is one inconsistency found by a scan.
type Violation struct {
	Rule    string `json:"rule"`
	Subject string `json:"subject"`
	Detail  string `json:"detail"`
}

// Checker finds violations in a store.
type Checker interface {
	FindViolations(ctx context.Context) ([]Violation, error)
}

// Snapshot is a full read of the rows Evaluate needs.  Stores small enough
// to load wholesale (the in-memory store) build one and call Evaluate.
type Snapshot struct {
	Accounts []model.Account
	Workers  []model.WorkerProfile
	Bookings []model.Booking
}

// Evaluate checks every rule against s.  Results are sorted by rule then
// subject so they are stable across runs.
func Evaluate(s Snapshot) []Violation {
	roles := make(map[uint64]model.Role, len(s.Accounts))
	for _, a := range s.Accounts {
		roles[a.ID] = a.Role
	}

	var out []Violation
	profiles := make(map[uint64]bool, len(s.Workers))
	perAccount := map[uint64]int{}
	for _, p := range s.Workers {
		profiles[p.ID] = true
		perAccount[p.AccountID]++
		role, ok := roles[p.AccountID]
		if !ok {
			continue
		}
		if want := p.Status.RoleFor(); role != want {
			rule := RuleActiveRole
			if p.Status == model.WorkerInactive {
				rule = RuleInactiveRole
			}
			out = append(out, Violation{
				Rule:    rule,
				Subject: fmt.Sprintf("worker_profile:%d", p.ID),
				Detail:  fmt.Sprintf("status=%s account=%d role=%s", p.Status, p.AccountID, role),
			})
		}
	}
	for acc, n := range perAccount {
		if n > 1 {
			out = append(out, Violation{
				Rule:    RuleDuplicateWorker,
				Subject: fmt.Sprintf("account:%d", acc),
				Detail:  fmt.Sprintf("%d profiles", n),
			})
		}
	}

	slots := map[model.SlotKey][]uint64{}
	for _, b := range s.Bookings {
		if b.Status.Occupies() {
			slots[b.Slot()] = append(slots[b.Slot()], b.ID)
		}
		if b.WorkerProfileID != nil && !profiles[*b.WorkerProfileID] {
			out = append(out, Violation{
				Rule:    RuleDanglingWorker,
				Subject: fmt.Sprintf("booking:%d", b.ID),
				Detail:  fmt.Sprintf("worker_profile_id=%d does not exist", *b.WorkerProfileID),
			})
		}
	}
	for key, ids := range slots {
		if len(ids) > 1 {
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			out = append(out, Violation{
				Rule:    RuleDuplicateSlot,
				Subject: "slot:" + key.String(),
				Detail:  fmt.Sprintf("bookings=%v", ids),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Rule != out[j].Rule {
			return out[i].Rule < out[j].Rule
		}
		return out[i].Subject < out[j].Subject
	})
	return out
}

// Auditor runs a Checker and logs what it finds.
type Auditor struct {
	checker Checker
	timeout time.Duration
}

// New returns an Auditor whose scans are bounded by timeout.
func New(checker Checker, timeout time.Duration) *Auditor {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Auditor{checker: checker, timeout: timeout}
}

// Run performs one scan and logs each violation at error level.
func (a *Auditor) Run(ctx context.Context) ([]Violation, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	vs, err := a.checker.FindViolations(ctx)
	if err != nil {
		return nil, fmt.Errorf("consistency scan: %w", err)
	}
	for _, v := range vs {
		logger.Log.WithFields(logrus.Fields{
			"rule":    v.Rule,
			"subject": v.Subject,
		}).Error("consistency violation: " + v.Detail)
	}
	logger.Log.WithField("violations", len(vs)).Info("consistency audit finished")
	return vs, nil
}

// Schedule registers the audit on c using a cron spec such as "@every 15m".
func (a *Auditor) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if _, err := a.Run(context.Background()); err != nil {
			logger.Log.WithError(err).Error("scheduled consistency audit failed")
		}
	})
}
