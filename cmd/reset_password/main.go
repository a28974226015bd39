package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"reliclog/pkg/config"
	"reliclog/pkg/logging"
	"reliclog/pkg/store"
)

func main() {
	username := flag.String("username", "", "username to reset")
	password := flag.String("password", "", "new plaintext password (min 6 chars)")
	cfgPath := flag.String("config", "", "config file")
	flag.Parse()
	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "--username and --password are required")
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_ = logging.Init(cfg.LogLevel, true)
	if err := cfg.RequireDB(); err != nil {
		log.Fatal().Err(err).Send()
	}
	db, err := store.Open(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	err = store.New(db).SetPassword(context.Background(), *username, *password)
	if errors.Is(err, store.ErrNotFound) {
		log.Fatal().Str("username", *username).Msg("user not found")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("reset failed")
	}
	fmt.Printf("Password reset for user %s; existing sessions revoked\n", *username)
}
