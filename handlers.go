package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"reliclog/models"
	"reliclog/pkg/config"
	"reliclog/pkg/ocr"
	"reliclog/pkg/refdata"
	"reliclog/pkg/store"
	"reliclog/process/report"
)

type server struct {
	cfg      config.Config
	store    *store.Store // nil when no database is configured
	pipeline *ocr.Pipeline
	lookup   *refdata.Lookup
	secret   []byte
	now      func() time.Time
}

func newServer(cfg config.Config, st *store.Store, p *ocr.Pipeline, l *refdata.Lookup) *server {
	return &server{cfg: cfg, store: st, pipeline: p, lookup: l, secret: []byte(cfg.JWTSecret), now: time.Now}
}

func setupRoutes(r *gin.Engine, s *server) {
	r.GET("/vocabulary", s.vocabularyHandler)
	r.GET("/lookup", s.identifyHandler)
	r.GET("/lookup/:name", s.lookupHandler)

	db := r.Group("", s.requireStore())
	db.POST("/register", s.registerHandler)
	db.POST("/login", s.loginHandler)
	db.POST("/refresh", s.refreshHandler)
	db.POST("/revoke_refresh", s.revokeRefreshHandler)

	authGroup := r.Group("")
	authGroup.Use(s.jwtAuthMiddleware())
	authGroup.GET("/me", s.meHandler)
	authGroup.POST("/scan", s.scanHandler)
	authGroup.POST("/relics", s.requireStore(), s.createRelicHandler)
	authGroup.GET("/relics", s.requireStore(), s.listRelicsHandler)
	authGroup.DELETE("/relics", s.requireStore(), s.clearRelicsHandler)
	authGroup.GET("/relics/summary", s.requireStore(), s.summaryHandler)
}

func (s *server) requireStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.store == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
			return
		}
		c.Next()
	}
}

// ocrErrorStatus maps pipeline failures to HTTP status codes.
func ocrErrorStatus(err error) int {
	switch {
	case errors.Is(err, ocr.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, ocr.ErrOracle):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func validationProblems(err error) ([]string, bool) {
	var ve *ocr.ValidationError
	if errors.As(err, &ve) {
		return ve.Problems, true
	}
	return nil, false
}

func (s *server) vocabularyHandler(c *gin.Context) {
	v := s.pipeline.Vocabulary()
	type slot struct {
		Slot      string   `json:"slot"`
		MainStats []string `json:"mainStats"`
	}
	slots := []slot{}
	for _, name := range v.Slots() {
		slots = append(slots, slot{Slot: name, MainStats: v.MainStats(name)})
	}
	c.JSON(http.StatusOK, gin.H{
		"subStats":       v.SubNames(),
		"searchTerms":    v.SearchTerms(),
		"slots":          slots,
		"inactiveMarker": v.InactiveMarker(),
	})
}

func (s *server) lookupHandler(c *gin.Context) {
	rec, ok := s.lookup.Get(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "relic not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// identifyHandler finds the relic piece named somewhere in ?text=.
func (s *server) identifyHandler(c *gin.Context) {
	text := c.Query("text")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text query parameter required"})
		return
	}
	rec, ok := s.lookup.Identify(text)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no known relic in text"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// scanHandler reads an uploaded relic screenshot. With save=true a reading that
// validates is logged for the current user.
func (s *server) scanHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > s.cfg.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file too large (max %d bytes)", s.cfg.MaxUploadBytes)})
		return
	}
	save := c.PostForm("save") == "true"
	if save && s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
		return
	}

	dir := filepath.Join(s.cfg.UploadBase, filepath.Base(c.GetString("username")))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mkdir failed"})
		return
	}
	name := fmt.Sprintf("%d-%s", s.now().UnixNano(), filepath.Base(file.Filename))
	path := filepath.Join(dir, name)
	if err := c.SaveUploadedFile(file, path); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	scan, err := s.pipeline.Scan(c.Request.Context(), path)
	if err != nil {
		log.Warn().Err(err).Str("file", name).Msg("scan failed")
		c.JSON(ocrErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	vocab := s.pipeline.Vocabulary()
	slot := c.PostForm("slot")
	piece, identified := s.lookup.Identify(scan.CleanText)
	if identified {
		slot = piece.Slot
	}
	resp := gin.H{
		"file":      name,
		"rawText":   scan.RawText,
		"cleanText": scan.CleanText,
		"reading":   scan.Reading,
		"slot":      slot,
	}
	if identified {
		resp["piece"] = piece
	}

	valid, err := vocab.Validate(scan.Reading, slot)
	if problems, ok := validationProblems(err); ok {
		resp["problems"] = problems
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}
	resp["validated"] = valid
	if slot == "" {
		if slots := vocab.SlotsForMain(valid.Main.Name); len(slots) == 1 {
			slot = slots[0]
			resp["slot"] = slot
		}
	}

	if save {
		if slot == "" {
			resp["problems"] = []string{"slot required to log an unidentified relic"}
			c.JSON(http.StatusUnprocessableEntity, resp)
			return
		}
		user, ok := s.currentUser(c)
		if !ok {
			return
		}
		relic := models.NewLoggedRelic(user.ID, s.now(), slot, piece, valid)
		relic.SourceFile = name
		relic.RawText = scan.RawText
		if err := s.store.CreateRelic(c.Request.Context(), &relic); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
			return
		}
		resp["relicId"] = relic.ID
	}
	c.JSON(http.StatusOK, resp)
}

type subStatInput struct {
	Stat  string   `json:"stat" binding:"required"`
	Value *float64 `json:"value"`
}

type relicInput struct {
	Date      string         `json:"date"` // RFC3339 or YYYY-MM-DD, defaults to now
	Domain    string         `json:"domain"`
	Set       string         `json:"set"`
	Slot      string         `json:"slot"`
	Piece     string         `json:"piece"`
	MainStat  string         `json:"mainStat" binding:"required"`
	MainValue *float64       `json:"mainValue"`
	SubStats  []subStatInput `json:"subStats"`
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// createRelicHandler logs a relic entered by hand.
func (s *server) createRelicHandler(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}
	var req relicInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var piece refdata.Record
	if req.Piece != "" {
		rec, ok := s.lookup.Get(req.Piece)
		if !ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"problems": []string{fmt.Sprintf("unknown relic %q", req.Piece)}})
			return
		}
		piece = rec
	} else {
		piece = refdata.Record{Set: req.Set, Domain: req.Domain}
	}
	slot := req.Slot
	if piece.Slot != "" {
		slot = piece.Slot
	}
	vocab := s.pipeline.Vocabulary()
	if !slices.Contains(vocab.Slots(), slot) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"problems": []string{fmt.Sprintf("unknown slot %q", slot)}})
		return
	}

	date := s.now()
	if req.Date != "" {
		t, err := parseDate(req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be RFC3339 or YYYY-MM-DD"})
			return
		}
		date = t
	}

	// The main value is optional when logging by hand.
	reading := ocr.Reading{Main: &ocr.ParsedStat{Name: req.MainStat, Value: req.MainValue}}
	if req.MainValue == nil {
		reading.Main.Value = new(float64)
	}
	for _, sub := range req.SubStats {
		reading.Subs = append(reading.Subs, ocr.ParsedStat{Name: sub.Stat, Value: sub.Value})
	}
	valid, err := vocab.Validate(reading, slot)
	if problems, ok := validationProblems(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"problems": problems})
		return
	}
	if req.MainValue == nil {
		valid.Main.Value = nil
	}

	relic := models.NewLoggedRelic(user.ID, date, slot, piece, valid)
	if err := s.store.CreateRelic(c.Request.Context(), &relic); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, relic)
}

// listRelicsHandler lists recent relics of the current user (admin sees all).
func (s *server) listRelicsHandler(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}
	f := store.RelicFilter{Set: c.Query("set"), Slot: c.Query("slot")}
	if !isAdmin(c) {
		f.UserID = &user.ID
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		f.Limit = n
	}
	if m := c.Query("month"); m != "" {
		start, end, err := report.MonthRange(m)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f.Since, f.Until = start, end
	}
	items, err := s.store.ListRelics(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, items)
}

// clearRelicsHandler deletes the current user's relics, optionally only those
// logged before ?before=. Administrators may pass all=true.
func (s *server) clearRelicsHandler(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}
	var before time.Time
	if v := c.Query("before"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "before must be RFC3339 or YYYY-MM-DD"})
			return
		}
		before = t
	}
	owner := &user.ID
	if c.Query("all") == "true" {
		if !isAdmin(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		owner = nil
	}
	n, err := s.store.ClearRelics(c.Request.Context(), owner, before)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// summaryHandler counts a month's relics by set, slot and main stat.
func (s *server) summaryHandler(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}
	opts := report.Options{Month: c.DefaultQuery("month", s.now().UTC().Format("2006-01"))}
	if !isAdmin(c) || c.Query("mine") == "true" {
		opts.User = &user
	}
	if _, _, err := report.MonthRange(opts.Month); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rep, err := report.Monthly(c.Request.Context(), s.store.DB(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, rep)
}
