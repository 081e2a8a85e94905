package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"github.com/faultscope/faultscope/engine/domain"
	"github.com/faultscope/faultscope/engine/faultcode"
	"github.com/faultscope/faultscope/pkg/resilience"
)

const searchTarget = "search"

// SearchConfig points the last-resort lookup at an HTML search page.
type SearchConfig struct {
	// URL is a format string with one %s for the escaped query.
	URL string
	// ResultSelector picks result links; when it matches nothing every
	// anchor on the page is considered.
	ResultSelector string
}

var phrasing = map[domain.Category]string{
	domain.CategoryAutomotive: "OBD fault code meaning causes fix",
	domain.CategoryAircraft:   "aircraft fault code maintenance troubleshooting",
	domain.CategoryIndustrial: "error code troubleshooting manual",
	domain.CategoryTechnology: "error code fix",
	domain.CategoryGeneric:    "fault code meaning",
}

var (
	causeKeywords    = []string{"cause", "problem", "issue"}
	solutionKeywords = []string{"fix", "solution", "repair"}
)

// BuildQuery phrases the search for equipment and code.
func BuildQuery(equipment, code string) string {
	return fmt.Sprintf("%q %q %s", strings.TrimSpace(equipment), code, phrasing[domain.Classify(equipment)])
}

func (r *Resolver) search(ctx context.Context, code, equipment string) (Result, bool) {
	res, err := r.searchPage(ctx, code, equipment)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, errPageMissing):
		r.observe(searchTarget, OutcomeMiss)
		return Result{}, false
	case errors.Is(err, resilience.ErrCircuitOpen):
		r.observe(searchTarget, OutcomeSkipped)
		r.log.Debug("search skipped, breaker open", "code", code)
		return Result{}, false
	case err != nil:
		r.observe(searchTarget, OutcomeError)
		r.log.Warn("search fallback failed", "code", code, "err", err)
		return Result{}, false
	}
	r.observe(searchTarget, OutcomeHit)
	return res, true
}

func (r *Resolver) searchPage(ctx context.Context, code, equipment string) (Result, error) {
	searchURL := fmt.Sprintf(r.cfg.Search.URL, url.QueryEscape(BuildQuery(equipment, code)))
	base, err := url.Parse(searchURL)
	if err != nil {
		return Result{}, err
	}

	var link string
	err = r.cfg.Breakers.Get(searchTarget).Call(ctx, func(ctx context.Context) error {
		doc, err := fetchDocument(ctx, r.cfg.Client, searchURL, r.cfg.SearchTimeout)
		if errors.Is(err, errPageMissing) {
			return nil
		}
		if err != nil {
			return err
		}
		link = firstResultLink(doc, base, r.cfg.Search.ResultSelector)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if link == "" {
		return Result{}, ErrNotFound
	}

	page, err := fetchDocument(ctx, r.cfg.Client, link, r.cfg.SearchTimeout)
	if err != nil {
		return Result{}, err
	}
	res, ok := extractFromPage(page, code)
	if !ok {
		return Result{}, ErrNotFound
	}
	res.Source = link
	return fillPlaceholders(res), nil
}

// firstResultLink returns the first absolute http(s) link that does not point
// back at the search engine itself. Redirect wrappers are unwrapped.
func firstResultLink(doc *goquery.Document, base *url.URL, selector string) string {
	pick := func(s *goquery.Selection) string {
		var found string
		s.EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, ok := a.Attr("href")
			if !ok {
				return true
			}
			if u := resolveResult(base, href); u != "" {
				found = u
				return false
			}
			return true
		})
		return found
	}
	if link := pick(doc.Find(selector)); link != "" {
		return link
	}
	return pick(doc.Find("a[href]"))
}

func resolveResult(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)
	if isRedirect(u) {
		for _, param := range []string{"uddg", "q", "url"} {
			if target := u.Query().Get(param); strings.HasPrefix(target, "http") {
				if t, err := url.Parse(target); err == nil {
					u = t
				}
				break
			}
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" || sameSite(u, base) {
		return ""
	}
	return u.String()
}

// sameSite reports whether u belongs to the same registrable domain as base,
// so duckduckgo.com is recognised as home when searching html.duckduckgo.com.
// IP hosts and single-label names only match on an identical host:port.
func sameSite(u, base *url.URL) bool {
	if u.Host == base.Host {
		return true
	}
	h, bh := u.Hostname(), base.Hostname()
	if net.ParseIP(h) != nil || net.ParseIP(bh) != nil {
		return false
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(h)
	if err != nil {
		return false
	}
	bd, err := publicsuffix.EffectiveTLDPlusOne(bh)
	if err != nil {
		return false
	}
	return strings.EqualFold(d, bd)
}

// isRedirect matches the click-tracking paths search engines wrap results in.
func isRedirect(u *url.URL) bool {
	return u.Path == "/l/" || u.Path == "/l" || u.Path == "/url"
}

// extractFromPage pulls what it can out of an arbitrary page. ok is false when
// nothing at all was found.
func extractFromPage(doc *goquery.Document, code string) (Result, bool) {
	var res Result
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := cleanText(p.Text())
		if strings.Contains(strings.ToUpper(text), code) {
			res.Description = text
			return false
		}
		return true
	})

	doc.Find("ul, ol").Each(func(_ int, list *goquery.Selection) {
		items := texts(list.ChildrenFiltered("li"))
		if res.Causes == nil && anyContains(items, causeKeywords) {
			res.Causes = items
		}
		if res.Solutions == nil && anyContains(items, solutionKeywords) {
			res.Solutions = items
		}
	})

	return res, !res.empty()
}

func anyContains(items, keywords []string) bool {
	for _, item := range items {
		lower := strings.ToLower(item)
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				return true
			}
		}
	}
	return false
}

func fillPlaceholders(r Result) Result {
	if r.Description == "" {
		r.Description = faultcode.Placeholder
	}
	if len(r.Causes) == 0 {
		r.Causes = []string{faultcode.Placeholder}
	}
	if len(r.Solutions) == 0 {
		r.Solutions = []string{faultcode.Placeholder}
	}
	return r
}
