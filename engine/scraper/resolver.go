package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/faultscope/faultscope/engine/domain"
	"github.com/faultscope/faultscope/pkg/resilience"
)

// Fetch outcomes reported to the Observer.
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Observer receives one call per fetch attempt. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveFetch(target, outcome string)
}

// Config configures a Resolver. Zero values pick the production defaults.
type Config struct {
	Client       *http.Client
	Manufacturer Target
	Targets      []Target
	Search       SearchConfig

	ManufacturerTimeout time.Duration // default 7s
	TargetTimeout       time.Duration // default 5s
	SearchTimeout       time.Duration // default 5s

	Breakers *resilience.Group
	Observer Observer
	Logger   *slog.Logger
}

// Resolver looks a fault code up on the web: the manufacturer site first,
// then specialized OBD sites, then a generic search.
type Resolver struct {
	cfg Config
	log *slog.Logger
}

// New creates a Resolver, filling unset fields with defaults.
func New(cfg Config) *Resolver {
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Manufacturer.BaseURL == "" {
		cfg.Manufacturer = ManufacturerTarget()
	}
	if cfg.Targets == nil {
		cfg.Targets = DefaultTargets()
	}
	if cfg.Search.URL == "" {
		cfg.Search.URL = DefaultSearch().URL
	}
	if cfg.Search.ResultSelector == "" {
		cfg.Search.ResultSelector = DefaultSearch().ResultSelector
	}
	if cfg.ManufacturerTimeout <= 0 {
		cfg.ManufacturerTimeout = 7 * time.Second
	}
	if cfg.TargetTimeout <= 0 {
		cfg.TargetTimeout = 5 * time.Second
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 5 * time.Second
	}
	if cfg.Breakers == nil {
		cfg.Breakers = resilience.NewGroup(resilience.DefaultBreakerOpts)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{cfg: cfg, log: log.With("component", "scraper")}
}

// Resolve returns scraped information for code, or ErrNotFound. Network and
// parse failures are logged and absorbed.
func (r *Resolver) Resolve(ctx context.Context, code, equipment string) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("scrape panicked", "code", code, "panic", fmt.Sprint(p))
			res, err = Result{}, ErrNotFound
		}
	}()

	code = domain.NormalizeCode(code)
	if code == "" {
		return Result{}, ErrNotFound
	}

	if domain.IsOBDCode(code) {
		if mfr := domain.InferManufacturer(equipment); mfr != "" {
			if res, ok := r.scrapeTarget(ctx, r.cfg.Manufacturer, code, mfr, r.cfg.ManufacturerTimeout); ok {
				res.Manufacturer = mfr
				return res, nil
			}
		}
	}

	if domain.IsAutomotive(equipment) {
		for _, t := range r.cfg.Targets {
			if ctx.Err() != nil {
				return Result{}, ErrNotFound
			}
			if !t.applies(code) {
				continue
			}
			if res, ok := r.scrapeTarget(ctx, t, code, "", r.cfg.TargetTimeout); ok {
				return res, nil
			}
		}
	}

	if ctx.Err() != nil {
		return Result{}, ErrNotFound
	}
	if res, ok := r.search(ctx, code, equipment); ok {
		return res, nil
	}
	return Result{}, ErrNotFound
}

// scrapeTarget fetches one target through its breaker. A missing page, or one
// that parses but yields nothing, is a miss, not a breaker failure.
func (r *Resolver) scrapeTarget(ctx context.Context, t Target, code, manufacturer string, timeout time.Duration) (Result, bool) {
	url := t.URL(code, manufacturer)
	var res Result
	err := r.cfg.Breakers.Get(t.Name).Call(ctx, func(ctx context.Context) error {
		doc, err := fetchDocument(ctx, r.cfg.Client, url, timeout)
		if errors.Is(err, errPageMissing) {
			return nil
		}
		if err != nil {
			return err
		}
		res = extract(doc, t.Selectors)
		return nil
	})

	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		r.observe(t.Name, OutcomeSkipped)
		r.log.Debug("target skipped, breaker open", "target", t.Name)
		return Result{}, false
	case err != nil:
		r.observe(t.Name, OutcomeError)
		r.log.Warn("target fetch failed", "target", t.Name, "url", url, "err", err)
		return Result{}, false
	case res.empty():
		r.observe(t.Name, OutcomeMiss)
		return Result{}, false
	}

	r.observe(t.Name, OutcomeHit)
	res.Source = url
	return fillPlaceholders(res), true
}

func (r *Resolver) observe(target, outcome string) {
	if r.cfg.Observer != nil {
		r.cfg.Observer.ObserveFetch(target, outcome)
	}
}

// Budget is the longest a single Resolve can spend on fetches: the
// manufacturer page, every specialized target, the search page and the page
// it links to.
func (r *Resolver) Budget() time.Duration {
	return r.cfg.ManufacturerTimeout +
		time.Duration(len(r.cfg.Targets))*r.cfg.TargetTimeout +
		2*r.cfg.SearchTimeout
}

// BreakerStates exposes per-target breaker state for diagnostics.
func (r *Resolver) BreakerStates() map[string]resilience.State {
	return r.cfg.Breakers.States()
}
