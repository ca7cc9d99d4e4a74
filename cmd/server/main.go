package main // server entry point: HTTP API, scheduled audit and event publishing

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"

	"github.com/iliyamo/service-scheduling/internal/audit"
	"github.com/iliyamo/service-scheduling/internal/catalog"
	"github.com/iliyamo/service-scheduling/internal/config"
	"github.com/iliyamo/service-scheduling/internal/database"
	"github.com/iliyamo/service-scheduling/internal/handler"
	"github.com/iliyamo/service-scheduling/internal/logger"
	"github.com/iliyamo/service-scheduling/internal/memstore"
	"github.com/iliyamo/service-scheduling/internal/middleware"
	"github.com/iliyamo/service-scheduling/internal/model"
	"github.com/iliyamo/service-scheduling/internal/queue"
	"github.com/iliyamo/service-scheduling/internal/repository"
	"github.com/iliyamo/service-scheduling/internal/router"
	"github.com/iliyamo/service-scheduling/internal/service"
	"github.com/iliyamo/service-scheduling/internal/utils"
)

// backend is whatever the selected store provides to the services.
type backend struct {
	scope   service.Scope
	catalog service.Catalog
	checker audit.Checker
	close   func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("load config")
	}
	logger.Init("scheduling-api", cfg.LogLevel)

	be, err := openBackend(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("open store")
	}
	defer be.close()

	var events service.EventPublisher = service.NoopPublisher{}
	if cfg.RabbitURL != "" {
		pub, err := queue.NewPublisher(cfg.RabbitURL, cfg.EventsExchange)
		if err != nil {
			// events are best effort; the API keeps working without them
			logger.Log.WithError(err).Warn("event publisher unavailable, events disabled")
		} else {
			defer pub.Close()
			events = pub
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Log.Warn("redis unavailable, rate limiting and slot cache disabled")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	events = middleware.NewSlotCacheInvalidator(events, cacheCfg, rdb)

	workers := service.NewWorkerRoleSync(be.scope, events)
	guard := service.NewSlotReservationGuard(be.scope, be.catalog, events)

	sched := cron.New()
	if cfg.AuditSchedule != "" {
		if _, err := audit.New(be.checker, time.Minute).Schedule(sched, cfg.AuditSchedule); err != nil {
			logger.Log.WithError(err).Fatal("schedule consistency audit")
		}
		sched.Start()
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLog())
	e.Use(echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{Timeout: cfg.RequestTimeout}))

	router.RegisterRoutes(e, router.Deps{
		JWTSecret: cfg.JWTSecret,
		Workers:   handler.NewWorkerAdminHandler(workers),
		Bookings:  handler.NewReservationHandler(guard),
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     cacheCfg,
	})

	addr := ":" + cfg.Port
	go func() {
		logger.Log.Infof("listening on %s (env=%s, store=%s)", addr, cfg.Env, cfg.Store)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("http server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Log.Info("shutting down")
	<-sched.Stop().Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("graceful shutdown")
	}
}

func openBackend(cfg config.Config) (backend, error) {
	if cfg.Store == config.StoreMemory {
		return openMemory(cfg)
	}

	db, err := database.Open(cfg.Database())
	if err != nil {
		return backend{}, err
	}
	if cfg.DBMigrateOnStartup {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return backend{}, err
		}
	}
	gdb, err := catalog.OpenGorm(db, cfg.IsDev())
	if err != nil {
		_ = db.Close()
		return backend{}, err
	}
	return backend{
		scope:   repository.NewScope(db, cfg.Retry()),
		catalog: catalog.NewRepo(gdb),
		checker: repository.NewAuditRepo(db),
		close:   func() { closeDB(db) },
	}, nil
}

// openMemory starts with one administrator so the API is usable right away.
// In dev a token for it is logged.
func openMemory(cfg config.Config) (backend, error) {
	store := memstore.New()
	admin := store.AddAccount(model.Account{
		Email:       "admin@example.com",
		DisplayName: "Administrator",
		Role:        model.RoleAdministrator,
	})
	if cfg.IsDev() {
		tok, err := utils.NewAccessToken(cfg.JWTSecret, admin.ID, admin.Role, time.Duration(cfg.AccessTTLMin)*time.Minute)
		if err != nil {
			return backend{}, err
		}
		logger.Log.WithField("account_id", admin.ID).Infof("memory store admin token: %s", tok.Token)
	}
	return backend{
		scope:   store,
		catalog: catalog.NewStatic(catalog.DefaultCodes()...),
		checker: store,
		close:   func() {},
	}, nil
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		logger.Log.WithError(err).Warn("close database")
	}
}
