// Command watch_screens logs relics from a folder of screenshots and, with
// -watch, keeps processing new ones as they arrive.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"reliclog/pkg/config"
	"reliclog/pkg/logging"
	"reliclog/pkg/store"
	"reliclog/process/screens"
)

func main() {
	dir := flag.String("dir", "public/screens/inbox", "directory to scan for relic screenshots")
	processed := flag.String("processed", "public/screens/processed", "directory processed screenshots are moved to (empty keeps them)")
	username := flag.String("username", "", "owner of the logged relics (default: configured admin)")
	slot := flag.String("slot", "", "slot to assume when a screenshot names no known piece")
	dryRun := flag.Bool("dry-run", false, "scan and validate only, no database")
	keepIllegible := flag.Bool("keep-illegible", false, "log relics with unreadable values (fix later with cmd_rescan)")
	watch := flag.Bool("watch", false, "watch the directory for new files")
	workers := flag.Int("workers", 1, "worker pool size (0 = NumCPU)")
	maxBytes := flag.Int64("max-bytes", 1_000_000, "downscale processed images above this size (0 disables)")
	cfgPath := flag.String("config", "", "config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logging.Init(cfg.LogLevel, true); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := cfg.NewPipeline()
	if err != nil {
		log.Fatal().Err(err).Msg("ocr pipeline init failed")
	}
	lookup, err := cfg.NewLookup()
	if err != nil {
		log.Fatal().Err(err).Msg("relic lookup init failed")
	}
	p := &screens.Processor{
		Pipeline: pipeline,
		Lookup:   lookup,
		Dir:      *dir,
		MaxBytes: *maxBytes,
		Slot:     *slot,

		KeepIllegible: *keepIllegible,
	}

	if !*dryRun {
		if err := cfg.RequireDB(); err != nil {
			log.Fatal().Err(err).Msg("database required (or pass -dry-run)")
		}
		db, err := store.Open(cfg.DBDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		st := store.New(db)
		name := *username
		if name == "" {
			name = cfg.AdminUsername
		}
		user, err := st.UserByName(ctx, name)
		if err != nil {
			log.Fatal().Err(err).Str("username", name).Msg("owner not found")
		}
		p.Sink = st
		p.UserID = user.ID
		p.ProcessedDir = *processed
	}

	files, err := screens.ListImages(*dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", *dir).Msg("cannot list screenshots")
	}
	log.Info().Int("files", len(files)).Int("workers", screens.EffectiveWorkers(*workers)).Bool("dry_run", *dryRun).Msg("scanning")
	stats := p.ProcessAll(ctx, files, *workers)
	log.Info().Str("stats", stats.String()).Msg("scan done")

	if *watch {
		stats, err := p.Watch(ctx, *workers)
		if err != nil {
			log.Fatal().Err(err).Msg("watch failed")
		}
		log.Info().Str("stats", stats.String()).Msg("watch stopped")
	}
}
