// Package analyze resolves a fault code through the fallback chain: local
// table, web scrape, generative model, simulated answer.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/faultscope/faultscope/engine/domain"
	"github.com/faultscope/faultscope/engine/faultcode"
	"github.com/faultscope/faultscope/engine/generative"
	"github.com/faultscope/faultscope/engine/scraper"
	"github.com/faultscope/faultscope/pkg/fn"
	"github.com/faultscope/faultscope/pkg/natsutil"
	"github.com/faultscope/faultscope/pkg/resilience"
)

// Stage names, in chain order.
const (
	StageTable      = "table"
	StageScrape     = "scrape"
	StageGenerative = "generative"
	StageSimulated  = "simulated"
)

// Scraper resolves codes missing from the table. *scraper.Resolver satisfies it.
type Scraper interface {
	Resolve(ctx context.Context, code, equipment string) (scraper.Result, error)
}

// Observer records which stage answered. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveAnalysis(stage string, elapsed time.Duration)
}

// Emitter publishes advisory events. *natsutil.Publisher satisfies it.
type Emitter interface {
	Emit(ctx context.Context, subject string, v any)
}

// Event is published after every successful analysis.
type Event struct {
	Code      string    `json:"code"`
	Equipment string    `json:"equipment"`
	Stage     string    `json:"stage"`
	At        time.Time `json:"at"`
}

// Analysis is the outcome of one resolution.
type Analysis struct {
	Text   string
	Stage  string
	Report faultcode.Report
}

// Config wires a Service. Only Table is required.
type Config struct {
	Table    *faultcode.Table
	Scraper  Scraper
	Provider generative.Provider
	// Breaker guards Provider. Defaults to resilience.DefaultBreakerOpts.
	Breaker *resilience.Breaker
	// Delay is the pause after a table miss, before scraping.
	Delay    time.Duration
	Emitter  Emitter
	Observer Observer
	Logger   *slog.Logger
}

// Service runs the fallback chain. Safe for concurrent use.
type Service struct {
	table    *faultcode.Table
	delay    time.Duration
	emitter  Emitter
	observer Observer
	log      *slog.Logger
	chain    fn.Stage[domain.AnalyzeRequest, Analysis]
	fallback fn.Stage[domain.AnalyzeRequest, Analysis]
}

// NewService builds the chain from cfg.
func NewService(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		table:    cfg.Table,
		delay:    cfg.Delay,
		emitter:  cfg.Emitter,
		observer: cfg.Observer,
		log:      log.With("component", "analyze"),
	}

	stages := []fn.Stage[domain.AnalyzeRequest, Analysis]{
		fn.TracedStage("analyze.table", s.tableStage),
		fn.TracedStage("analyze.scrape", s.guard(StageScrape, s.scrapeStage(cfg.Scraper))),
	}
	if cfg.Provider != nil {
		b := cfg.Breaker
		if b == nil {
			b = resilience.NewBreaker(resilience.DefaultBreakerOpts)
		}
		gen := resilience.BreakerStage(b, s.guard(StageGenerative, s.generativeStage(cfg.Provider)))
		stages = append(stages, fn.TracedStage("analyze.generative", gen))
	}
	s.chain = fn.FirstOk(stages...)
	s.fallback = fn.TracedStage("analyze.simulated", fn.MapStage(simulatedStage))
	return s
}

// Analyze validates the request and returns the first stage's answer.
// Input errors are *domain.ValidationError; anything else is internal.
func (s *Service) Analyze(ctx context.Context, equipment, code string) (Analysis, error) {
	req := domain.AnalyzeRequest{Equipment: strings.TrimSpace(equipment), Code: domain.NormalizeCode(code)}
	if err := domain.ValidateAnalyzeRequest(req); err != nil {
		return Analysis{}, err
	}

	start := time.Now()
	res := s.chain(ctx, req)
	if res.IsErr() {
		// The simulated answer is total, so it is produced even after the
		// caller gave up on the upstream stages.
		res = s.fallback(context.WithoutCancel(ctx), req)
	}
	a, err := res.Unwrap()
	if err != nil {
		return Analysis{}, fmt.Errorf("analyze %s: %w", req.Code, err)
	}
	a.Text = faultcode.Format(a.Report)

	elapsed := time.Since(start)
	if s.observer != nil {
		s.observer.ObserveAnalysis(a.Stage, elapsed)
	}
	s.log.Info("fault code analyzed", "code", req.Code, "stage", a.Stage, "elapsed", elapsed)
	if s.emitter != nil {
		s.emitter.Emit(ctx, natsutil.SubjectAnalysis, Event{
			Code:      req.Code,
			Equipment: req.Equipment,
			Stage:     a.Stage,
			At:        time.Now().UTC(),
		})
	}
	return a, nil
}

var errMiss = errors.New("stage miss")

func (s *Service) tableStage(_ context.Context, req domain.AnalyzeRequest) fn.Result[Analysis] {
	rec, ok := s.table.Lookup(req.Code)
	if !ok {
		return fn.Err[Analysis](errMiss)
	}
	return fn.Ok(Analysis{Stage: StageTable, Report: faultcode.FromRecord(rec, req.Equipment)})
}

func (s *Service) scrapeStage(sc Scraper) fn.Stage[domain.AnalyzeRequest, Analysis] {
	return func(ctx context.Context, req domain.AnalyzeRequest) fn.Result[Analysis] {
		if err := s.wait(ctx); err != nil {
			return fn.Err[Analysis](err)
		}
		if sc == nil {
			return fn.Err[Analysis](errMiss)
		}
		res, err := sc.Resolve(ctx, req.Code, req.Equipment)
		if err != nil {
			return fn.Err[Analysis](err)
		}
		safety := faultcode.SafetyGeneral
		if res.Severity != "" {
			safety = faultcode.DeriveSafety(res.Severity)
		}
		return fn.Ok(Analysis{Stage: StageScrape, Report: faultcode.Report{
			Code:         req.Code,
			Equipment:    req.Equipment,
			Description:  res.Description,
			Causes:       res.Causes,
			Solutions:    res.Solutions,
			Severity:     res.Severity,
			Safety:       safety,
			Manufacturer: res.Manufacturer,
			Source:       res.Source,
		}})
	}
}

func (s *Service) generativeStage(p generative.Provider) fn.Stage[domain.AnalyzeRequest, Analysis] {
	return func(ctx context.Context, req domain.AnalyzeRequest) fn.Result[Analysis] {
		text, err := p.Complete(ctx, generative.Prompt(req.Code, req.Equipment))
		if err != nil {
			s.log.Warn("generative fallback failed", "code", req.Code, "err", err)
			return fn.Err[Analysis](err)
		}
		return fn.Ok(Analysis{Stage: StageGenerative, Report: faultcode.Report{
			Code:      req.Code,
			Equipment: req.Equipment,
			Body:      text,
			Safety:    SafetyNotice,
		}})
	}
}

func simulatedStage(req domain.AnalyzeRequest) Analysis {
	return Analysis{Stage: StageSimulated, Report: Simulate(req.Code, req.Equipment)}
}

// guard turns a panic inside an upstream stage into an ordinary miss.
func (s *Service) guard(name string, stage fn.Stage[domain.AnalyzeRequest, Analysis]) fn.Stage[domain.AnalyzeRequest, Analysis] {
	return func(ctx context.Context, req domain.AnalyzeRequest) (res fn.Result[Analysis]) {
		defer func() {
			if p := recover(); p != nil {
				s.log.Error("stage panicked", "stage", name, "code", req.Code, "panic", fmt.Sprint(p))
				res = fn.Errf[Analysis]("%s stage panicked: %v", name, p)
			}
		}()
		return stage(ctx, req)
	}
}

func (s *Service) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return nil
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TableSize reports how many codes the local table holds.
func (s *Service) TableSize() int { return s.table.Len() }
