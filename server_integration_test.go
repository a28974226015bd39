package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"reliclog/pkg/ocr"
	"reliclog/pkg/refdata"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) *gin.Engine {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	cfg.DBDSN = os.Getenv("DB_DSN")
	cfg.DBAutoMigrate = true
	cfg.AdminUsername = "admin"
	st, err := initDB(cfg)
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	vocab, err := refdata.DefaultVocabulary()
	if err != nil {
		t.Fatal(err)
	}
	p, err := ocr.NewPipeline(ocr.RecognizerFunc(func(context.Context, []byte, string) (string, error) {
		return hairstickText, nil
	}), vocab, ocr.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	lookup, err := refdata.DefaultLookup()
	if err != nil {
		t.Fatal(err)
	}
	r := gin.New()
	setupRoutes(r, newServer(cfg, st, p, lookup))
	return r
}

func TestFullFlow(t *testing.T) {
	r := setupTestServer(t)
	username := fmt.Sprintf("user-%d", time.Now().UnixNano())

	// 1. Register user
	regBody, _ := json.Marshal(map[string]string{"username": username, "password": "pass123"})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("register failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate register got %d", resp.Code)
	}

	// 2. Login
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	refresh, _ := loginResp["refresh_token"].(string)
	if token == "" || refresh == "" {
		t.Fatalf("missing tokens in login response: %+v", loginResp)
	}

	// 3. Scan and log a screenshot
	buf, ct := screenshotForm(t, map[string]string{"save": "true"})
	resp = performRequest(r, http.MethodPost, "/scan", buf, token, ct)
	if resp.Code != 200 {
		t.Fatalf("scan failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 4. Log a relic by hand
	manual, _ := json.Marshal(map[string]any{
		"date":     "2025-08-03",
		"piece":    "Musketeer's Rivets Riding Boots",
		"mainStat": "SPD",
		"subStats": []map[string]any{{"stat": "ATK", "value": 3.8}, {"stat": "HP", "value": 38}},
	})
	resp = performRequest(r, http.MethodPost, "/relics", bytes.NewBuffer(manual), token, "application/json")
	if resp.Code != http.StatusCreated {
		t.Fatalf("create relic failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 5. List relics
	resp = performRequest(r, http.MethodGet, "/relics", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("list relics failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var relics []map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &relics)
	if len(relics) != 2 {
		t.Fatalf("expected 2 relics got %d", len(relics))
	}

	// 6. Monthly summary
	resp = performRequest(r, http.MethodGet, "/relics/summary?month=2025-08", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("summary failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var summary map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &summary)
	if total, _ := summary["total"].(float64); total != 1 {
		t.Fatalf("expected 1 relic in 2025-08 got %v", summary["total"])
	}

	// 7. Refresh rotates the refresh token
	refBody, _ := json.Marshal(map[string]string{"refresh_token": refresh})
	resp = performRequest(r, http.MethodPost, "/refresh", bytes.NewBuffer(refBody), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("refresh failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodPost, "/refresh", bytes.NewBuffer(refBody), "", "application/json")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for reused refresh token got %d", resp.Code)
	}

	// 8. Clear own relics
	resp = performRequest(r, http.MethodDelete, "/relics", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("clear relics failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodDelete, "/relics?all=true", nil, token, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin clear all got %d", resp.Code)
	}

	// 9. Unauthorized access to protected endpoint should be 401
	unauth := performRequest(r, http.MethodGet, "/relics", nil, "", "")
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthorized list relics got %d", unauth.Code)
	}
}

func TestMigrateCommand(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	cfg := testConfig(t)
	cfg.DBDSN = os.Getenv("DB_DSN")
	cfg.DBAutoMigrate = true
	if _, err := initDB(cfg); err != nil {
		t.Fatal(err)
	}
}
