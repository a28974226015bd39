package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"reliclog/pkg/config"
	"reliclog/pkg/logging"
	"reliclog/pkg/store"
	"reliclog/process/report"
)

func main() {
	username := flag.String("username", "", "username to report for (empty: all users)")
	month := flag.String("month", time.Now().UTC().Format("2006-01"), "month to report (YYYY-MM)")
	list := flag.Bool("list", false, "list matching relics")
	cfgPath := flag.String("config", "", "config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err == nil {
		err = logging.Init(cfg.LogLevel, true)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.RequireDB(); err != nil {
		log.Error().Err(err).Msg("export DB_DSN and retry")
		os.Exit(2)
	}
	db, err := store.Open(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	ctx := context.Background()

	opts := report.Options{Month: *month, List: *list}
	if *username != "" {
		u, err := store.New(db).UserByName(ctx, *username)
		if err != nil {
			log.Fatal().Err(err).Str("username", *username).Msg("user not found")
		}
		opts.User = &u
	}
	rep, err := report.Monthly(ctx, db, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("report failed")
	}
	rep.Print(os.Stdout)
}
