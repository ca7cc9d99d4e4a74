// Package catalog is the read side of the service catalog.  Booking requests
// name a service descriptor; the catalog confirms it exists and returns its
// canonical code.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Service is a row of catalog_services.
type Service struct {
	Code        string    `gorm:"primaryKey;size:64" json:"code"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	DurationMin int       `gorm:"not null;default:60" json:"duration_min"`
	Active      bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Service) TableName() string { return "catalog_services" }

// Defaults is the starter catalog written by cmd/seed and served in memory
// mode.
var Defaults = []Service{
	{Code: "consultation", Name: "Consultation", DurationMin: 30, Active: true},
	{Code: "oil-change", Name: "Oil change", DurationMin: 45, Active: true},
	{Code: "inspection", Name: "Vehicle inspection", DurationMin: 60, Active: true},
	{Code: "repair", Name: "General repair", DurationMin: 120, Active: true},
}

// DefaultCodes returns the codes of Defaults.
func DefaultCodes() []string {
	codes := make([]string, len(Defaults))
	for i, s := range Defaults {
		codes[i] = s.Code
	}
	return codes
}

// Normalize trims and lower-cases a descriptor so "Oil-Change " and
// "oil-change" resolve to the same code.
func Normalize(descriptor string) string {
	return strings.ToLower(strings.TrimSpace(descriptor))
}

// OpenGorm wraps an existing connection pool so the catalog shares the pool
// opened by database.Open.
func OpenGorm(sqlDB *sql.DB, debug bool) (*gorm.DB, error) {
	lvl := gormlogger.Error
	if debug {
		lvl = gormlogger.Info
	}
	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(lvl),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return db, nil
}

// Repo reads the catalog through gorm.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// Lookup returns the code of an active service matching descriptor.
func (r *Repo) Lookup(ctx context.Context, descriptor string) (string, bool, error) {
	var s Service
	err := r.db.WithContext(ctx).
		Where("code = ? AND active = ?", Normalize(descriptor), true).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s.Code, true, nil
}

// List returns the active services ordered by code.
func (r *Repo) List(ctx context.Context) ([]Service, error) {
	var out []Service
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("code").Find(&out).Error
	return out, err
}

// Upsert inserts s or overwrites the row with the same code.  Only the seeder
// writes the catalog.
func (r *Repo) Upsert(ctx context.Context, s Service) error {
	s.Code = Normalize(s.Code)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&s).Error
}

// Static is a fixed catalog for tests and the in-memory mode.
type Static struct {
	services map[string]Service
}

// NewStatic builds a catalog from service codes; names default to the code.
func NewStatic(codes ...string) *Static {
	s := &Static{services: make(map[string]Service, len(codes))}
	for _, c := range codes {
		c = Normalize(c)
		s.services[c] = Service{Code: c, Name: c, DurationMin: 60, Active: true}
	}
	return s
}

func (s *Static) Lookup(_ context.Context, descriptor string) (string, bool, error) {
	svc, ok := s.services[Normalize(descriptor)]
	if !ok || !svc.Active {
		return "", false, nil
	}
	return svc.Code, true, nil
}

func (s *Static) List(context.Context) ([]Service, error) {
	out := make([]Service, 0, len(s.services))
	for _, svc := range s.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}
