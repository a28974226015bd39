// Package store persists users, sessions and logged relics in Postgres via gorm.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"reliclog/models"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionInvalid     = errors.New("invalid or expired refresh token")
	ErrNotFound           = errors.New("not found")
)

// Open connects to Postgres.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
}

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for reporting queries.
func (s *Store) DB() *gorm.DB { return s.db }

// Migrate creates or updates every table. Each model is migrated on its own so
// one failure does not block the rest; all failures are returned joined.
func (s *Store) Migrate() error {
	var errs []error
	for _, m := range []struct {
		table string
		model any
	}{
		{"users", &models.User{}},
		{"sessions", &models.Session{}},
		{"logged_relics", &models.LoggedRelic{}},
		{"logged_sub_stats", &models.LoggedSubStat{}},
	} {
		if err := s.db.AutoMigrate(m.model); err != nil {
			log.Warn().Err(err).Str("table", m.table).Msg("migration failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Store) with(ctx context.Context) *gorm.DB { return s.db.WithContext(ctx) }
