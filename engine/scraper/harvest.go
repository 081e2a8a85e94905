package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/faultscope/faultscope/engine/domain"
	"github.com/faultscope/faultscope/engine/faultcode"
)

// HarvestConfig controls a bulk crawl of the manufacturer site.
type HarvestConfig struct {
	BaseURL string        // default https://faultcodes.co
	Delay   time.Duration // minimum spacing between requests, default 500ms; negative disables
	Timeout time.Duration // per request, default 10s

	GenericLimit  int // generic codes to fetch, default 100
	ModelsPerMake int // default 3
	CodesPerModel int // default 5
	// Workers is how many makes are crawled concurrently. Requests still
	// share one pacing limiter. Default 1.
	Workers int

	Makes  []string // default domain.Manufacturers
	Client *http.Client
	Logger *slog.Logger
}

// Harvester crawls fault codes into faultcode.Harvested records.
type Harvester struct {
	cfg     HarvestConfig
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewHarvester creates a Harvester, filling unset fields with defaults.
func NewHarvester(cfg HarvestConfig) *Harvester {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://faultcodes.co"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Delay < 0 {
		cfg.Delay = 0
	} else if cfg.Delay == 0 {
		cfg.Delay = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.GenericLimit <= 0 {
		cfg.GenericLimit = 100
	}
	if cfg.ModelsPerMake <= 0 {
		cfg.ModelsPerMake = 3
	}
	if cfg.CodesPerModel <= 0 {
		cfg.CodesPerModel = 5
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Makes == nil {
		cfg.Makes = domain.Manufacturers
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	return &Harvester{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		log:     log.With("component", "harvester"),
	}
}

func (h *Harvester) get(ctx context.Context, p string) (*goquery.Document, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return fetchDocument(ctx, h.cfg.Client, h.cfg.BaseURL+p, h.cfg.Timeout)
}

// Models lists model slugs for a make.
func (h *Harvester) Models(ctx context.Context, mk string) ([]string, error) {
	doc, err := h.get(ctx, "/cars/"+mk)
	if err != nil {
		return nil, fmt.Errorf("models for %s: %w", mk, err)
	}
	var models []string
	doc.Find(".car-model-card a").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			if slug := lastSegment(href); slug != "" {
				models = append(models, slug)
			}
		}
	})
	return models, nil
}

// ModelCodes lists fault codes published for a make and model.
func (h *Harvester) ModelCodes(ctx context.Context, mk, model string) ([]string, error) {
	doc, err := h.get(ctx, "/cars/"+mk+"/"+model)
	if err != nil {
		return nil, fmt.Errorf("codes for %s %s: %w", mk, model, err)
	}
	var codes []string
	doc.Find(".fault-code-card a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if c := domain.NormalizeCode(lastSegment(href)); c != "" {
			codes = append(codes, c)
		}
	})
	return codes, nil
}

// PopularCodes lists the codes linked from the site's landing page.
func (h *Harvester) PopularCodes(ctx context.Context) ([]string, error) {
	doc, err := h.get(ctx, "/")
	if err != nil {
		return nil, fmt.Errorf("popular codes: %w", err)
	}
	var codes []string
	seen := make(map[string]bool)
	doc.Find(`a[href*="/code/"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		c := domain.NormalizeCode(lastSegment(href))
		if c != "" && !seen[c] {
			seen[c] = true
			codes = append(codes, c)
		}
	})
	return codes, nil
}

// Details fetches one code. mk and model may be empty for the generic page.
func (h *Harvester) Details(ctx context.Context, code, mk, model string) (faultcode.Harvested, error) {
	code = domain.NormalizeCode(code)
	lower := strings.ToLower(code)

	var p string
	switch {
	case mk != "" && model != "":
		p = "/cars/" + mk + "/" + model + "/" + lower
	case mk != "":
		p = "/cars/" + mk + "/" + lower
	default:
		p = "/code/" + lower
	}

	doc, err := h.get(ctx, p)
	if err != nil {
		return faultcode.Harvested{}, fmt.Errorf("details for %s: %w", code, err)
	}
	r := extract(doc, ManufacturerTarget().Selectors)

	out := faultcode.Harvested{
		Code:         code,
		Manufacturer: mk,
		Model:        model,
		Description:  r.Description,
		Causes:       r.Causes,
		Solutions:    r.Solutions,
		Severity:     r.Severity,
	}
	if out.Manufacturer == "" {
		out.Manufacturer = "generic"
	}
	if out.Model == "" {
		out.Model = "all"
	}
	if out.Description == "" {
		out.Description = "Fault code " + code
	}
	if len(out.Causes) == 0 {
		out.Causes = []string{faultcode.Placeholder}
	}
	if len(out.Solutions) == 0 {
		out.Solutions = []string{faultcode.Placeholder}
	}
	if out.Severity == "" {
		out.Severity = "Not specified"
	}
	return out, nil
}

// Run crawls generic codes, then a sample of models and codes per make,
// calling emit for every record. Per-page failures are logged and skipped;
// only context cancellation aborts the run. emit is never called concurrently.
func (h *Harvester) Run(ctx context.Context, emit func(faultcode.Harvested)) error {
	generic := GenericCodes()
	if popular, err := h.PopularCodes(ctx); err != nil {
		h.log.Warn("popular codes unavailable", "err", err)
	} else {
		generic = mergeCodes(generic, popular)
	}
	if len(generic) > h.cfg.GenericLimit {
		generic = generic[:h.cfg.GenericLimit]
	}

	h.log.Info("harvesting generic codes", "count", len(generic))
	for _, code := range generic {
		rec, err := h.Details(ctx, code, "", "")
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.log.Debug("generic code skipped", "code", code, "err", err)
			continue
		}
		emit(rec)
	}

	perMake := make([][]faultcode.Harvested, len(h.cfg.Makes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.Workers)
	for i, mk := range h.cfg.Makes {
		g.Go(func() error {
			recs, err := h.harvestMake(gctx, mk)
			perMake[i] = recs
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, recs := range perMake {
		for _, rec := range recs {
			emit(rec)
		}
	}
	return nil
}

func (h *Harvester) harvestMake(ctx context.Context, mk string) ([]faultcode.Harvested, error) {
	models, err := h.Models(ctx, mk)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		h.log.Warn("make skipped", "make", mk, "err", err)
		return nil, nil
	}
	if len(models) > h.cfg.ModelsPerMake {
		models = models[:h.cfg.ModelsPerMake]
	}

	var out []faultcode.Harvested
	for _, model := range models {
		codes, err := h.ModelCodes(ctx, mk, model)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			h.log.Warn("model skipped", "make", mk, "model", model, "err", err)
			continue
		}
		if len(codes) > h.cfg.CodesPerModel {
			codes = codes[:h.cfg.CodesPerModel]
		}
		for _, code := range codes {
			rec, err := h.Details(ctx, code, mk, model)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				h.log.Debug("code skipped", "make", mk, "model", model, "code", code, "err", err)
				continue
			}
			out = append(out, rec)
		}
	}
	h.log.Info("make harvested", "make", mk, "models", len(models), "codes", len(out))
	return out, nil
}

// GenericCodes enumerates every P, B, C and U code from 0000 to 9999.
func GenericCodes() []string {
	codes := make([]string, 0, 4*10000)
	for _, prefix := range []string{"P", "B", "C", "U"} {
		for n := 0; n < 10000; n++ {
			codes = append(codes, fmt.Sprintf("%s%04d", prefix, n))
		}
	}
	return codes
}

func mergeCodes(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, c := range base {
		seen[c] = true
	}
	for _, c := range extra {
		if !seen[c] {
			seen[c] = true
			base = append(base, c)
		}
	}
	return base
}

func lastSegment(href string) string {
	if u, err := url.Parse(href); err == nil {
		href = u.Path
	}
	seg := path.Base(strings.TrimRight(href, "/"))
	if seg == "." || seg == "/" {
		return ""
	}
	return seg
}
