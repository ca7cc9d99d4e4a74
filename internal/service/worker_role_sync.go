package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/service-scheduling/internal/logger"
	"github.com/iliyamo/service-scheduling/internal/model"
)

// WorkerRoleSync keeps a worker profile's status and its account's role in
// step.  Every transition writes the profile and the role inside a single
// scope, so the pair is never observed out of sync.
//
// Locks are always taken account first, then profile.
type WorkerRoleSync struct {
	scope  Scope
	events EventPublisher
}

// NewWorkerRoleSync panics on a nil scope.  A nil publisher disables events.
func NewWorkerRoleSync(scope Scope, events EventPublisher) *WorkerRoleSync {
	if scope == nil {
		panic("nil scope passed to NewWorkerRoleSync")
	}
	if events == nil {
		events = NoopPublisher{}
	}
	return &WorkerRoleSync{scope: scope, events: events}
}

// Promote turns accountID into an active worker.  An inactive profile left
// over from an earlier demotion is rewritten in place; otherwise a new
// profile row is inserted.  The account role becomes worker.
func (s *WorkerRoleSync) Promote(ctx context.Context, accountID uint64, name, position string, compensation *int64) (model.WorkerProfile, error) {
	name = strings.TrimSpace(name)
	position = strings.TrimSpace(position)
	if accountID == 0 {
		return model.WorkerProfile{}, invalidInput("account id is required")
	}
	if name == "" || position == "" {
		return model.WorkerProfile{}, invalidInput("name and position are required")
	}
	if compensation != nil && *compensation < 0 {
		return model.WorkerProfile{}, invalidInput("compensation must not be negative")
	}

	var (
		out    model.WorkerProfile
		reused bool
	)
	err := s.scope.Run(ctx, func(ctx context.Context, tx Tx) error {
		v := NewValidator(tx)
		_, existing, err := v.CanAssignWorker(ctx, accountID)
		if err != nil {
			return err
		}

		var profileID uint64
		reused = existing != nil
		if reused {
			if err := v.CanReactivateWorker(*existing); err != nil {
				return err
			}
			if err := tx.Workers().Reactivate(ctx, existing.ID, name, position, compensation); err != nil {
				return StoreFailure("reactivate profile", err)
			}
			profileID = existing.ID
		} else {
			p := model.WorkerProfile{
				AccountID:    accountID,
				Name:         name,
				Position:     position,
				Status:       model.WorkerActive,
				Compensation: compensation,
			}
			if err := tx.Workers().Insert(ctx, &p); err != nil {
				return StoreFailure("insert profile", err)
			}
			profileID = p.ID
		}

		if err := tx.Accounts().SetRole(ctx, accountID, model.RoleWorker); err != nil {
			return StoreFailure("set role", err)
		}

		p, ok, err := tx.Workers().Get(ctx, profileID)
		if err != nil {
			return StoreFailure("reload profile", err)
		}
		if !ok {
			return StoreFailure("reload profile", errMissingAfterWrite)
		}
		out = p
		return nil
	})
	if err != nil {
		return model.WorkerProfile{}, finish("promote worker", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"account_id": accountID,
		"profile_id": out.ID,
		"reused":     reused,
	}).Info("worker promoted")
	publish(ctx, s.events, EventWorkerPromoted, WorkerEvent{
		ProfileID: out.ID,
		AccountID: out.AccountID,
		Status:    out.Status,
		Role:      model.RoleWorker,
		Reused:    reused,
	})
	return out, nil
}

// SetStatus moves a profile between active and inactive and writes the
// paired account role.  Setting the current status again is rejected with
// InvalidState and writes nothing.
func (s *WorkerRoleSync) SetStatus(ctx context.Context, profileID uint64, status model.WorkerStatus) (model.WorkerProfile, error) {
	if !status.Valid() {
		return model.WorkerProfile{}, invalidInput("unknown worker status %q", status)
	}

	var out model.WorkerProfile
	err := s.scope.Run(ctx, func(ctx context.Context, tx Tx) error {
		p, _, err := lockProfile(ctx, tx, profileID)
		if err != nil {
			return err
		}
		v := NewValidator(tx)
		if err := checkTransition(p, status); err != nil {
			return err
		}
		if status == model.WorkerActive {
			if err := v.CanReactivateWorker(p); err != nil {
				return err
			}
		}

		if err := tx.Workers().SetStatus(ctx, p.ID, status); err != nil {
			return StoreFailure("set profile status", err)
		}
		if err := tx.Accounts().SetRole(ctx, p.AccountID, status.RoleFor()); err != nil {
			return StoreFailure("set role", err)
		}

		fresh, ok, err := tx.Workers().Get(ctx, p.ID)
		if err != nil {
			return StoreFailure("reload profile", err)
		}
		if !ok {
			return StoreFailure("reload profile", errMissingAfterWrite)
		}
		out = fresh
		return nil
	})
	if err != nil {
		return model.WorkerProfile{}, finish("set worker status", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"account_id": out.AccountID,
		"profile_id": out.ID,
		"status":     out.Status,
	}).Info("worker status changed")
	publish(ctx, s.events, EventWorkerStatusChanged, WorkerEvent{
		ProfileID: out.ID,
		AccountID: out.AccountID,
		Status:    out.Status,
		Role:      out.Status.RoleFor(),
	})
	return out, nil
}

// Remove deletes a profile.  Bookings assigned to it are unassigned, the row
// is deleted and the account reverts to customer, all in one scope.
func (s *WorkerRoleSync) Remove(ctx context.Context, profileID uint64) error {
	var (
		accountID uint64
		cleared   int64
	)
	err := s.scope.Run(ctx, func(ctx context.Context, tx Tx) error {
		p, _, err := lockProfile(ctx, tx, profileID)
		if err != nil {
			return err
		}
		accountID = p.AccountID

		n, err := tx.Bookings().ClearWorker(ctx, p.ID)
		if err != nil {
			return StoreFailure("clear booking workers", err)
		}
		cleared = n
		if err := tx.Workers().Delete(ctx, p.ID); err != nil {
			return StoreFailure("delete profile", err)
		}
		if err := tx.Accounts().SetRole(ctx, p.AccountID, model.RoleCustomer); err != nil {
			return StoreFailure("set role", err)
		}
		return nil
	})
	if err != nil {
		return finish("remove worker", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"account_id":       accountID,
		"profile_id":       profileID,
		"cleared_bookings": cleared,
	}).Info("worker removed")
	publish(ctx, s.events, EventWorkerRemoved, WorkerEvent{
		ProfileID:       profileID,
		AccountID:       accountID,
		Role:            model.RoleCustomer,
		ClearedBookings: cleared,
	})
	return nil
}

// Get returns one profile.
func (s *WorkerRoleSync) Get(ctx context.Context, profileID uint64) (model.WorkerProfile, error) {
	var out model.WorkerProfile
	err := s.scope.Run(ctx, func(ctx context.Context, tx Tx) error {
		p, ok, err := tx.Workers().Get(ctx, profileID)
		if err != nil {
			return StoreFailure("get profile", err)
		}
		if !ok {
			return notFound("worker profile %d not found", profileID)
		}
		out = p
		return nil
	})
	if err != nil {
		return model.WorkerProfile{}, finish("get worker", err)
	}
	return out, nil
}

// List returns every profile ordered by id.
func (s *WorkerRoleSync) List(ctx context.Context) ([]model.WorkerProfile, error) {
	var out []model.WorkerProfile
	err := s.scope.Run(ctx, func(ctx context.Context, tx Tx) error {
		ps, err := tx.Workers().List(ctx)
		if err != nil {
			return StoreFailure("list profiles", err)
		}
		out = ps
		return nil
	})
	if err != nil {
		return nil, finish("list workers", err)
	}
	return out, nil
}

// lockProfile resolves the profile's account without a lock, locks the
// account, then locks the profile and re-checks the link.  Administrators
// never hold a profile; finding one linked is reported as RoleConflict so
// the administrator role is left untouched.
func lockProfile(ctx context.Context, tx Tx, profileID uint64) (model.WorkerProfile, model.Account, error) {
	peek, ok, err := tx.Workers().Get(ctx, profileID)
	if err != nil {
		return model.WorkerProfile{}, model.Account{}, StoreFailure("get profile", err)
	}
	if !ok {
		return model.WorkerProfile{}, model.Account{}, notFound("worker profile %d not found", profileID)
	}
	acc, ok, err := tx.Accounts().GetForUpdate(ctx, peek.AccountID)
	if err != nil {
		return model.WorkerProfile{}, model.Account{}, StoreFailure("lock account", err)
	}
	if !ok {
		return model.WorkerProfile{}, model.Account{}, notFound("account %d not found", peek.AccountID)
	}
	p, ok, err := tx.Workers().GetForUpdate(ctx, profileID)
	if err != nil {
		return model.WorkerProfile{}, model.Account{}, StoreFailure("lock profile", err)
	}
	if !ok {
		return model.WorkerProfile{}, model.Account{}, notFound("worker profile %d not found", profileID)
	}
	if p.AccountID != acc.ID {
		return model.WorkerProfile{}, model.Account{}, invalidState("worker profile %d changed owner concurrently", profileID)
	}
	if acc.Role == model.RoleAdministrator {
		return model.WorkerProfile{}, model.Account{}, newError(KindRoleConflict, "account %d is an administrator", acc.ID)
	}
	return p, acc, nil
}
