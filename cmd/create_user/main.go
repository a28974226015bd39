package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"reliclog/models"
	"reliclog/pkg/config"
	"reliclog/pkg/logging"
	"reliclog/pkg/store"
)

func main() {
	role := flag.String("role", models.RoleUser, "role of the new user (user or administrator)")
	cfgPath := flag.String("config", "", "config file")
	flag.Parse()
	if flag.NArg() < 2 {
		fmt.Println("usage: go run ./cmd/create_user [-role administrator] <username> <password>")
		os.Exit(2)
	}
	username, password := flag.Arg(0), flag.Arg(1)

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
		log.Fatal().Err(err).Msg("failed to open db")
	}

	user, err := store.New(db).CreateUser(context.Background(), username, password, *role)
	if errors.Is(err, store.ErrUserExists) {
		fmt.Printf("user %s already exists\n", username)
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create user")
	}
	fmt.Printf("created user %s id=%d role=%s\n", user.Username, user.ID, user.Role)
}
