// Package scraper resolves fault codes that are missing from the local table
// by scraping third-party sites, and harvests codes in bulk for import.
// Everything here is best-effort: page structures change without notice, so
// a miss is the normal outcome and never an error for the caller.
package scraper

import (
	"errors"
	"strings"
)

// ErrNotFound means no source produced usable fault information.
var ErrNotFound = errors.New("scraper: fault code not found")

// Selectors are the CSS selectors used to pull each field out of a page.
// Causes and Solutions select one element per item.
type Selectors struct {
	Description string
	Causes      string
	Solutions   string
	Severity    string
}

// Target is one site consulted for fault-code details.
type Target struct {
	Name    string
	BaseURL string
	// Path is appended to BaseURL after substituting {code}, {code_lower}
	// and {make}.
	Path string
	// Applies reports whether the site can answer for code. Nil means always.
	Applies   func(code string) bool
	Selectors Selectors
}

// URL builds the page address for code and (optional) manufacturer.
func (t Target) URL(code, manufacturer string) string {
	r := strings.NewReplacer(
		"{code}", code,
		"{code_lower}", strings.ToLower(code),
		"{make}", manufacturer,
	)
	return strings.TrimRight(t.BaseURL, "/") + r.Replace(t.Path)
}

func (t Target) applies(code string) bool {
	return t.Applies == nil || t.Applies(code)
}

// Result is fault information scraped for a single request. Never cached.
type Result struct {
	Description  string
	Causes       []string
	Solutions    []string
	Severity     string
	Manufacturer string
	Source       string
}

func (r Result) empty() bool {
	return r.Description == "" && len(r.Causes) == 0 && len(r.Solutions) == 0 && r.Severity == ""
}
