// Command cmd_clear_relics deletes logged relics straight through SQL, for
// one user or everyone, optionally only those dated before a day.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"reliclog/pkg/config"
	"reliclog/pkg/logging"
)

func main() {
	username := flag.String("user", "", "only clear relics of this user")
	before := flag.String("before", "", "only clear relics dated before YYYY-MM-DD")
	all := flag.Bool("all", false, "required to clear every user's relics")
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
	if err := cfg.RequireDB(); err != nil {
		log.Fatal().Err(err).Send()
	}
	if *username == "" && !*all {
		log.Fatal().Msg("pass -user NAME or -all")
	}
	var cutoff time.Time
	if *before != "" {
		cutoff, err = time.Parse("2006-01-02", *before)
		if err != nil {
			log.Fatal().Err(err).Msg("-before must be YYYY-MM-DD")
		}
	}

	db, err := sql.Open("postgres", cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()
	ctx := context.Background()

	var userID *int64
	if *username != "" {
		var id int64
		if err := db.QueryRowContext(ctx, `SELECT id FROM users WHERE username=$1 LIMIT 1`, *username).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				fmt.Printf("user %s not found; nothing to clear\n", *username)
				return
			}
			log.Fatal().Err(err).Msg("find user")
		}
		userID = &id
	}

	subs, relics, err := clearRelics(ctx, db, userID, cutoff)
	if err != nil {
		log.Fatal().Err(err).Msg("clear relics")
	}
	fmt.Printf("clear done: sub-stats deleted=%d, relics deleted=%d\n", subs, relics)
}

// clearRelics removes matching relics and their sub-stats in one transaction.
// A nil userID matches every user; a zero before matches every date.
func clearRelics(ctx context.Context, db *sql.DB, userID *int64, before time.Time) (int64, int64, error) {
	where, args := relicScope(userID, before)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	res1, err := tx.ExecContext(ctx, `DELETE FROM logged_sub_stats WHERE relic_id IN (SELECT id FROM logged_relics WHERE `+where+`)`, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("delete sub-stats: %w", err)
	}
	n1, _ := res1.RowsAffected()
	res2, err := tx.ExecContext(ctx, `DELETE FROM logged_relics WHERE `+where, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("delete relics: %w", err)
	}
	n2, _ := res2.RowsAffected()
	return n1, n2, tx.Commit()
}

func relicScope(userID *int64, before time.Time) (string, []any) {
	where := "TRUE"
	var args []any
	if userID != nil {
		args = append(args, *userID)
		where += fmt.Sprintf(" AND user_id=$%d", len(args))
	}
	if !before.IsZero() {
		args = append(args, before)
		where += fmt.Sprintf(" AND date < $%d", len(args))
	}
	return where, args
}
