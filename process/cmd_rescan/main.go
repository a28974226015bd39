package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"

	"reliclog/pkg/config"
	"reliclog/pkg/logging"
	"reliclog/pkg/store"
	"reliclog/process/rescan"
)

// cmd_rescan re-reads screenshots of relics logged with illegible values.
func main() {
	username := flag.String("username", "", "only rescan this user's relics")
	inbox := flag.String("dir", "public/screens/inbox", "directory with unprocessed screenshots")
	processed := flag.String("processed", "public/screens/processed", "directory with processed screenshots")
	contrast := flag.Float64("contrast", 30, "contrast boost before recognition (0 disables)")
	dry := flag.Bool("dry-run", true, "dry-run: don't write to DB")
	cfgPath := flag.String("config", "", "config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_ = logging.Init(cfg.LogLevel, true)
	if err := cfg.RequireDB(); err != nil {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export and retry")
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := store.Open(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	st := store.New(db)
	var userID *uint
	if *username != "" {
		u, err := st.UserByName(ctx, *username)
		if err != nil {
			log.Fatal().Err(err).Str("username", *username).Msg("user not found")
		}
		userID = &u.ID
	}
	pipeline, err := cfg.NewPipeline()
	if err != nil {
		log.Fatal().Err(err).Msg("ocr pipeline init failed")
	}

	r := &rescan.Rescanner{Pipeline: pipeline, Store: st, Dirs: []string{*processed, *inbox}, Contrast: *contrast, DryRun: *dry}
	res, err := r.Run(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("rescan stopped")
	}
	fmt.Printf("checked=%d updated=%d missing=%d unchanged=%d dry_run=%v\n", res.Checked, res.Updated, res.Missing, res.Unchanged, *dry)
	if err != nil {
		os.Exit(1)
	}
}
