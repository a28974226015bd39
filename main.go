package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"reliclog/pkg/config"
	"reliclog/pkg/logging"
)

func main() {
	cfgPath := flag.String("config", "", "config file (default ./config.yaml when present)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logging.Init(cfg.LogLevel, cfg.LogPretty); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.UsesDevSecret() {
		log.Warn().Msg("JWT_SECRET not set, using the development secret")
	}

	// `reliclog migrate` runs the migrations and admin seeding, then exits.
	if flag.Arg(0) == "migrate" {
		cfg.DBAutoMigrate = true
		if _, err := initDB(cfg); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		log.Info().Msg("migration and seeding completed")
		return
	}

	st, err := initDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}
	pipeline, err := cfg.NewPipeline()
	if err != nil {
		log.Fatal().Err(err).Msg("ocr pipeline init failed")
	}
	lookup, err := cfg.NewLookup()
	if err != nil {
		log.Fatal().Err(err).Msg("relic lookup init failed")
	}

	s := newServer(cfg, st, pipeline, lookup)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	setupRoutes(r, s)

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		log.Info().Str("addr", cfg.Addr).Int("relics", lookup.Len()).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

// requestLogger logs one line per request through zerolog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ev := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
