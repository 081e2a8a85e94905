package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/faultscope/faultscope/engine/analyze"
	"github.com/faultscope/faultscope/engine/canvas"
	"github.com/faultscope/faultscope/engine/faultcode"
	"github.com/faultscope/faultscope/engine/generative"
	"github.com/faultscope/faultscope/engine/iplog"
	"github.com/faultscope/faultscope/engine/scraper"
	"github.com/faultscope/faultscope/pkg/metrics"
	"github.com/faultscope/faultscope/pkg/natsutil"
	"github.com/faultscope/faultscope/pkg/ollama"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type offlineScraper struct{ calls int }

func (o *offlineScraper) Resolve(context.Context, string, string) (scraper.Result, error) {
	o.calls++
	return scraper.Result{}, scraper.ErrNotFound
}

type stubAnalyzer struct {
	err   error
	panic bool
}

func (s stubAnalyzer) Analyze(context.Context, string, string) (analyze.Analysis, error) {
	if s.panic {
		panic("boom")
	}
	return analyze.Analysis{}, s.err
}

func (s stubAnalyzer) TableSize() int { return 0 }

func testConfig() Config {
	return Config{CORSOrigin: "*", AdminUser: "Admin", AdminPass: "Root64", CanvasSize: 100}
}

func newTestServer(t *testing.T, a Analyzer, cfg Config) (*server, http.Handler) {
	t.Helper()
	s := &server{
		cfg:      cfg,
		analyzer: a,
		canvas:   canvas.NewStore(cfg.CanvasSize, cfg.PixelCooldown),
		ipLog:    iplog.New(50),
		metrics:  metrics.New(),
		events:   natsutil.NewPublisher(nil, quiet),
		log:      quiet,
	}
	return s, s.routes()
}

func offlineAnalyzer(t *testing.T) (*analyze.Service, *offlineScraper) {
	t.Helper()
	tbl, err := faultcode.Default()
	if err != nil {
		t.Fatal(err)
	}
	sc := &offlineScraper{}
	return analyze.NewService(analyze.Config{Table: tbl, Scraper: sc, Logger: quiet}), sc
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	handleHealth(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp["status"] != "ok" || resp["localDatabase"] != true {
		t.Fatalf("unexpected body %v", resp)
	}
}

func TestAnalyzeTableHit(t *testing.T) {
	svc, sc := offlineAnalyzer(t)
	_, h := newTestServer(t, svc, testConfig())

	rec := do(h, "POST", "/api/analyze", `{"equipment":"2015 Honda Civic","code":"p0171"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	analysis, _ := decode(t, rec)["analysis"].(string)
	if !strings.Contains(analysis, "System Too Lean (Bank 1)") || !strings.Contains(analysis, "Possible Causes:") {
		t.Errorf("unexpected analysis:\n%s", analysis)
	}
	if sc.calls != 0 {
		t.Error("scraper consulted on a table hit")
	}
}

func TestAnalyzeUnknownCodeIsSimulated(t *testing.T) {
	svc, _ := offlineAnalyzer(t)
	_, h := newTestServer(t, svc, testConfig())

	rec := do(h, "POST", "/api/analyze", `{"equipment":"Bosch dishwasher","code":"E99"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	analysis, _ := decode(t, rec)["analysis"].(string)
	if !strings.Contains(analysis, "Technology") {
		t.Errorf("expected simulated technology analysis:\n%s", analysis)
	}
}

func TestAnalyzeMissingFields(t *testing.T) {
	svc, sc := offlineAnalyzer(t)
	_, h := newTestServer(t, svc, testConfig())

	for _, body := range []string{`{"code":"P0171"}`, `{"equipment":"Civic"}`, `{"equipment":" ","code":""}`, `not json`} {
		rec := do(h, "POST", "/api/analyze", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
			continue
		}
		if msg := decode(t, rec)["error"]; msg != msgMissingInput {
			t.Errorf("%s: error = %v", body, msg)
		}
	}
	if sc.calls != 0 {
		t.Error("scraper consulted for invalid input")
	}
}

func TestAnalyzeInternalError(t *testing.T) {
	for name, a := range map[string]stubAnalyzer{
		"error": {err: errors.New("table exploded")},
		"panic": {panic: true},
	} {
		t.Run(name, func(t *testing.T) {
			_, h := newTestServer(t, a, testConfig())
			rec := do(h, "POST", "/api/analyze", `{"equipment":"x","code":"y"}`)
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", rec.Code)
			}
			resp := decode(t, rec)
			if resp["error"] != "Failed to analyze fault code" || resp["details"] == "" {
				t.Errorf("unexpected body %v", resp)
			}
		})
	}
}

func TestPixelsLastWriteWins(t *testing.T) {
	_, h := newTestServer(t, stubAnalyzer{}, testConfig())

	for _, color := range []string{"#FF0000", "#00FF00"} {
		rec := do(h, "POST", "/api/pixels", `{"x":5,"y":5,"color":"`+color+`"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
		}
		if decode(t, rec)["success"] != true {
			t.Fatal("expected success:true")
		}
	}

	rec := do(h, "GET", "/api/pixels", "")
	var pixels []canvas.Pixel
	if err := json.NewDecoder(rec.Body).Decode(&pixels); err != nil {
		t.Fatal(err)
	}
	if len(pixels) != 1 || pixels[0].Color != "#00FF00" {
		t.Fatalf("pixels = %+v", pixels)
	}
}

func TestPixelsRejectsBadInput(t *testing.T) {
	_, h := newTestServer(t, stubAnalyzer{}, testConfig())
	for _, body := range []string{`{"y":1,"color":"#000000"}`, `{"x":1,"y":1}`, `{"x":1,"y":1,"color":"blue"}`, `{"x":100,"y":1,"color":"#000000"}`} {
		if rec := do(h, "POST", "/api/pixels", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestPixelsCooldown(t *testing.T) {
	cfg := testConfig()
	cfg.PixelCooldown = time.Hour
	_, h := newTestServer(t, stubAnalyzer{}, cfg)

	if rec := do(h, "POST", "/api/pixels", `{"x":1,"y":1,"color":"#000000"}`); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if rec := do(h, "POST", "/api/pixels", `{"x":2,"y":2,"color":"#000000"}`); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestAdminLogin(t *testing.T) {
	_, h := newTestServer(t, stubAnalyzer{}, testConfig())

	rec := do(h, "POST", "/admin/login", `{"username":"Admin","password":"Root64"}`)
	if rec.Code != http.StatusOK || decode(t, rec)["success"] != true {
		t.Fatalf("valid login rejected: %d", rec.Code)
	}

	for _, body := range []string{`{"username":"Admin","password":"wrong"}`, `{"username":"admin","password":"Root64"}`, `{}`, `garbage`} {
		rec := do(h, "POST", "/admin/login", body)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", body, rec.Code)
			continue
		}
		if decode(t, rec)["success"] != false {
			t.Errorf("%s: expected success:false", body)
		}
	}
}

func TestAdminEndpointsRequireCredentials(t *testing.T) {
	_, h := newTestServer(t, stubAnalyzer{}, testConfig())
	for _, path := range []string{"/admin/ip-logs", "/admin/stats", "/admin/recent-activity", "/admin/ban-ip"} {
		if rec := do(h, "POST", path, `{"username":"x","password":"y"}`); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestAdminStatsAndActivity(t *testing.T) {
	svc, _ := offlineAnalyzer(t)
	_, h := newTestServer(t, svc, testConfig())
	creds := `{"username":"Admin","password":"Root64"}`

	do(h, "GET", "/health", "")
	do(h, "POST", "/api/pixels", `{"x":1,"y":2,"color":"#123456"}`)

	rec := do(h, "POST", "/admin/stats", creds)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp["pixels"] != float64(1) {
		t.Errorf("pixels = %v", resp["pixels"])
	}
	if fc, _ := resp["faultCodes"].(float64); fc < 10 {
		t.Errorf("faultCodes = %v", resp["faultCodes"])
	}
	stats, _ := resp["stats"].(map[string]any)
	if stats["totalRequests"] != float64(3) || stats["uniqueIPs"] != float64(1) {
		t.Errorf("stats = %v", stats)
	}

	rec = do(h, "POST", "/admin/recent-activity", creds)
	activity, _ := decode(t, rec)["activity"].([]any)
	if len(activity) != 4 {
		t.Fatalf("activity entries = %d, want 4", len(activity))
	}
	newest, _ := activity[0].(map[string]any)
	if newest["path"] != "/admin/recent-activity" {
		t.Errorf("newest entry = %v", newest)
	}

	rec = do(h, "POST", "/admin/ip-logs", creds)
	logs, _ := decode(t, rec)["logs"].([]any)
	if len(logs) != 5 {
		t.Errorf("logs = %d, want 5", len(logs))
	}
}

func TestAdminBanIPIsNoop(t *testing.T) {
	_, h := newTestServer(t, stubAnalyzer{}, testConfig())
	rec := do(h, "POST", "/admin/ban-ip", `{"username":"Admin","password":"Root64","ip":"10.1.1.1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp["success"] != true || !strings.Contains(resp["message"].(string), "10.1.1.1") {
		t.Errorf("unexpected body %v", resp)
	}
	if rec := do(h, "POST", "/api/pixels", `{"x":1,"y":1,"color":"#000000"}`); rec.Code != http.StatusCreated {
		t.Error("ban should not be enforced")
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	_, h := newTestServer(t, stubAnalyzer{}, testConfig())

	rec := do(h, "OPTIONS", "/api/analyze", "")
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight: %d %v", rec.Code, rec.Header())
	}
	rec = do(h, "GET", "/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	svc := analyze.NewService(analyze.Config{Table: mustTable(t), Scraper: &offlineScraper{}, Observer: m, Logger: quiet})
	s, _ := newTestServer(t, svc, testConfig())
	s.metrics = m
	h := s.routes()

	do(h, "POST", "/api/analyze", `{"equipment":"Civic","code":"P0171"}`)
	rec := do(h, "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `faultscope_analysis_total{stage="table"} 1`) {
		t.Errorf("analysis counter missing from exposition:\n%s", body)
	}
}

func mustTable(t *testing.T) *faultcode.Table {
	t.Helper()
	tbl, err := faultcode.Default()
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadConfig()
	if cfg.Port != "10000" || cfg.Host != "0.0.0.0" || cfg.CORSOrigin != "*" {
		t.Fatalf("unexpected listen defaults: %+v", cfg)
	}
	if cfg.AdminUser != "Admin" || cfg.AdminPass != "Root64" {
		t.Fatalf("unexpected admin defaults")
	}
	if cfg.OpenAIModel != "gpt-3.5-turbo" || cfg.OpenAIMaxTokens != 1000 || cfg.OpenAITemperature != 0.7 {
		t.Fatalf("unexpected openai defaults: %+v", cfg)
	}
	if cfg.ProcessingDelay != 2*time.Second || cfg.CanvasSize != 100 || cfg.PixelCooldown != 0 || cfg.MaxIPLogs != 1000 {
		t.Fatalf("unexpected runtime defaults: %+v", cfg)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("OPENAI_TEMPERATURE", "0.1")
	t.Setenv("PIXEL_COOLDOWN", "3")
	t.Setenv("PROCESSING_DELAY", "250ms")
	t.Setenv("MAX_IP_LOGS", "not-a-number")

	cfg := loadConfig()
	if cfg.Port != "9000" || cfg.OpenAITemperature != 0.1 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.PixelCooldown != 3*time.Second || cfg.ProcessingDelay != 250*time.Millisecond {
		t.Errorf("durations = %v %v", cfg.PixelCooldown, cfg.ProcessingDelay)
	}
	if cfg.MaxIPLogs != 1000 {
		t.Errorf("invalid int should fall back, got %d", cfg.MaxIPLogs)
	}
}

func TestNewProvider(t *testing.T) {
	if p := newProvider(Config{}, quiet); p != nil {
		t.Fatalf("expected no provider, got %T", p)
	}
	p := newProvider(Config{OllamaURL: "http://localhost:11434", OllamaModel: "llama3"}, quiet)
	if _, ok := p.(*ollama.Client); !ok {
		t.Fatalf("expected ollama client, got %T", p)
	}
	p = newProvider(Config{OpenAIKey: "sk-test", OpenAIModel: "gpt-4o-mini", OllamaURL: "http://localhost:11434"}, quiet)
	if _, ok := p.(*generative.OpenAIProvider); !ok {
		t.Fatalf("expected openai provider to win, got %T", p)
	}
}

func TestWriteTimeoutCoversChain(t *testing.T) {
	resolver := scraper.New(scraper.Config{})
	budget := resolver.Budget()
	// 7s manufacturer, four 5s targets, search page and result page.
	if budget != 37*time.Second {
		t.Fatalf("scrape budget = %v", budget)
	}
	cfg := Config{ProcessingDelay: 2 * time.Second, OllamaURL: "http://localhost:11434"}
	got := writeTimeout(cfg, budget)
	if worst := cfg.ProcessingDelay + budget + ollamaTimeout; got <= worst {
		t.Errorf("write timeout %v does not cover worst case %v", got, worst)
	}
	if got := writeTimeout(Config{OpenAIKey: "sk"}, budget); got != budget+openAITimeout+writeSlack {
		t.Errorf("openai write timeout = %v", got)
	}
	if got := writeTimeout(Config{}, budget); got != budget+writeSlack {
		t.Errorf("no provider write timeout = %v", got)
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("TEST_ENV_VAR_XYZ", "custom")
	if v := envOr("TEST_ENV_VAR_XYZ", "default"); v != "custom" {
		t.Fatalf("expected custom, got %s", v)
	}
	if v := envOr("NONEXISTENT_VAR_ABC", "fallback"); v != "fallback" {
		t.Fatalf("expected fallback, got %s", v)
	}
}

func TestRun_StartsAndShuts(t *testing.T) {
	cfg := testConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = "0"
	cfg.MaxIPLogs = 10

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, quiet) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not shut down")
	}
}

func TestRun_BadTablePath(t *testing.T) {
	cfg := testConfig()
	cfg.TablePath = "/nonexistent/table.yaml"
	if err := run(context.Background(), cfg, quiet); err == nil {
		t.Fatal("expected error for missing table file")
	}
}
