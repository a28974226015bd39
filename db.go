package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"reliclog/pkg/config"
	"reliclog/pkg/store"
)

// initDB opens Postgres, migrates when DB_AUTO_MIGRATE allows it and seeds the
// administrator account from the configuration.
func initDB(cfg config.Config) (*store.Store, error) {
	if err := cfg.RequireDB(); err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	st := store.New(db)
	if cfg.DBAutoMigrate {
		// Permission errors on existing tables are logged and ignored.
		if err := st.Migrate(); err != nil {
			log.Warn().Err(err).Msg("migration incomplete")
		}
	}
	if err := st.EnsureAdmin(context.Background(), cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Warn().Err(err).Str("username", cfg.AdminUsername).Msg("seeding admin failed")
	}
	return st, nil
}
