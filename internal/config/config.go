package config // package config loads application configuration from environment variables

import (
    "fmt"
    "os"
    "strings"
    "time"

    "github.com/joho/godotenv"
    "github.com/kelseyhightower/envconfig"

    "github.com/iliyamo/service-scheduling/internal/database"
    "github.com/iliyamo/service-scheduling/internal/service"
)

// Store backends selectable through APP_STORE.
const (
    StoreMySQL  = "mysql"
    StoreMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable named in its envconfig tag.
type Config struct {
    Env   string `envconfig:"APP_ENV" default:"dev"`      // application environment (dev/test/prod)
    Port  string `envconfig:"APP_PORT" default:"8080"`    // HTTP port to listen on
    Store string `envconfig:"APP_STORE" default:"mysql"`  // mysql or memory

    DBUser             string `envconfig:"DB_USER" default:"root"`
    DBPass             string `envconfig:"DB_PASS"`
    DBHost             string `envconfig:"DB_HOST" default:"127.0.0.1"`
    DBPort             string `envconfig:"DB_PORT" default:"3306"`
    DBName             string `envconfig:"DB_NAME" default:"scheduling"`
    DBLockWaitTimeout  int    `envconfig:"DB_LOCK_WAIT_TIMEOUT_SEC" default:"5"` // upper bound on any row lock wait
    DBMaxOpenConns     int    `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
    DBMigrateOnStartup bool   `envconfig:"DB_MIGRATE" default:"true"`

    JWTSecret    string `envconfig:"JWT_SECRET" required:"true"`           // secret used to verify JWTs
    AccessTTLMin int    `envconfig:"ACCESS_TOKEN_TTL_MIN" default:"60"`    // TTL of tokens minted by the seeder
    BcryptCost   int    `envconfig:"BCRYPT_COST" default:"10"`             // bcrypt cost for seeded passwords

    RequestTimeout   time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
    RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
    RetryBaseDelay   time.Duration `envconfig:"RETRY_BASE_DELAY" default:"25ms"`

    AuditSchedule string `envconfig:"AUDIT_SCHEDULE" default:"@every 15m"` // empty disables the audit

    RabbitURL      string `envconfig:"RABBITMQ_URL"`                            // empty disables domain events
    EventsExchange string `envconfig:"EVENTS_EXCHANGE" default:"scheduling.events"`
    ActivityQueue  string `envconfig:"ACTIVITY_QUEUE" default:"scheduling.activity"`
    ActivityLog    string `envconfig:"ACTIVITY_LOG" default:"logs/activity.log"`

    LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads an optional .env file and then the environment.  Missing
// required variables and malformed values are reported as an error.
func Load() (Config, error) {
    if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
        return Config{}, fmt.Errorf("load .env: %w", err)
    }
    var c Config
    if err := envconfig.Process("", &c); err != nil {
        return Config{}, err
    }
    c.Store = strings.ToLower(strings.TrimSpace(c.Store))
    if c.Store != StoreMySQL && c.Store != StoreMemory {
        return Config{}, fmt.Errorf("APP_STORE must be %q or %q, got %q", StoreMySQL, StoreMemory, c.Store)
    }
    return c, nil
}

// IsDev reports whether the application runs in development mode.
func (c Config) IsDev() bool { return c.Env == "dev" || c.Env == "development" }

// Database returns the connection options for database.Open.
func (c Config) Database() database.Options {
    return database.Options{
        User:               c.DBUser,
        Pass:               c.DBPass,
        Host:               c.DBHost,
        Port:               c.DBPort,
        Name:               c.DBName,
        LockWaitTimeoutSec: c.DBLockWaitTimeout,
        MaxOpenConns:       c.DBMaxOpenConns,
    }
}

// Retry returns the contention retry policy for transaction scopes.
func (c Config) Retry() service.RetryPolicy {
    return service.RetryPolicy{MaxAttempts: c.RetryMaxAttempts, BaseDelay: c.RetryBaseDelay}.Normalize()
}
