package main // seed creates the schema, starter accounts and the service catalog

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/iliyamo/service-scheduling/internal/catalog"
	"github.com/iliyamo/service-scheduling/internal/config"
	"github.com/iliyamo/service-scheduling/internal/database"
	"github.com/iliyamo/service-scheduling/internal/logger"
	"github.com/iliyamo/service-scheduling/internal/model"
	"github.com/iliyamo/service-scheduling/internal/repository"
	"github.com/iliyamo/service-scheduling/internal/utils"
)

type seedAccount struct {
	email string
	name  string
	role  model.Role
}

var accounts = []seedAccount{
	{"admin@example.com", "Administrator", model.RoleAdministrator},
	{"customer@example.com", "Sample Customer", model.RoleCustomer},
	{"staff@example.com", "Future Worker", model.RoleCustomer},
}

func main() {
	password := flag.String("password", "changeme123", "password for every seeded account")
	flag.Parse()
	if err := utils.CheckPassword(*password); err != nil {
		logger.Log.WithError(err).Fatal("invalid -password")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("load config")
	}
	logger.Init("scheduling-seed", cfg.LogLevel)

	db, err := database.Open(cfg.Database())
	if err != nil {
		logger.Log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := database.Migrate(ctx, db); err != nil {
		logger.Log.WithError(err).Fatal("migrate")
	}

	gdb, err := catalog.OpenGorm(db, false)
	if err != nil {
		logger.Log.WithError(err).Fatal("open catalog")
	}
	cat := catalog.NewRepo(gdb)
	for _, s := range catalog.Defaults {
		if err := cat.Upsert(ctx, s); err != nil {
			logger.Log.WithError(err).Fatalf("upsert service %s", s.Code)
		}
	}
	logger.Log.Infof("catalog: %d services", len(catalog.Defaults))

	repo := repository.NewAccountRepo(db)
	ttl := time.Duration(cfg.AccessTTLMin) * time.Minute
	for _, a := range accounts {
		acc, err := ensureAccount(ctx, repo, a, *password, cfg.BcryptCost)
		if err != nil {
			logger.Log.WithError(err).Fatalf("seed %s", a.email)
		}
		tok, err := utils.NewAccessToken(cfg.JWTSecret, acc.ID, acc.Role, ttl)
		if err != nil {
			logger.Log.WithError(err).Fatal("sign token")
		}
		fmt.Printf("%-22s id=%-4d role=%-13s token=%s\n", acc.Email, acc.ID, acc.Role, tok.Token)
	}
}

// ensureAccount creates a or returns the existing row with the same email.
// An existing row keeps its password; a mismatch is only reported.
func ensureAccount(ctx context.Context, repo *repository.AccountRepo, a seedAccount, password string, cost int) (model.Account, error) {
	_, err := repo.Create(ctx, a.email, a.name, password, a.role, cost)
	existed := errors.Is(err, repository.ErrEmailExists)
	if err != nil && !existed {
		return model.Account{}, err
	}
	acc, err := repo.GetByEmail(ctx, a.email)
	if err != nil {
		return model.Account{}, err
	}
	if existed && !utils.VerifyPassword(acc.PasswordHash, password) {
		logger.Log.WithField("email", acc.Email).Warn("account already exists with a different password")
	}
	return acc, nil
}
