package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// UserAgent is sent with every scrape request.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// errPageMissing marks a 404 or 410: the site is up but has no page for the
// code. Callers treat it as a miss.
var errPageMissing = errors.New("page missing")

// fetchDocument GETs url with the scrape user agent and parses the body as HTML.
// A zero timeout means no per-fetch deadline beyond ctx and the client.
func fetchDocument(ctx context.Context, client *http.Client, url string, timeout time.Duration) (*goquery.Document, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, fmt.Errorf("%s: %w", url, errPageMissing)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}

// extract applies sel to doc. Empty selectors are skipped.
func extract(doc *goquery.Document, sel Selectors) Result {
	var r Result
	if sel.Description != "" {
		r.Description = cleanText(doc.Find(sel.Description).First().Text())
	}
	if sel.Causes != "" {
		r.Causes = texts(doc.Find(sel.Causes))
	}
	if sel.Solutions != "" {
		r.Solutions = texts(doc.Find(sel.Solutions))
	}
	if sel.Severity != "" {
		r.Severity = cleanText(doc.Find(sel.Severity).First().Text())
	}
	return r
}

func texts(s *goquery.Selection) []string {
	var out []string
	s.Each(func(_ int, item *goquery.Selection) {
		if t := cleanText(item.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// cleanText collapses runs of whitespace and trims.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
