// Package iplog keeps a bounded in-memory log of incoming requests for the
// admin panel.
package iplog

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/faultscope/faultscope/pkg/mid"
)

// Entry is one logged request.
type Entry struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	UserAgent string    `json:"userAgent"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats summarises the log.
type Stats struct {
	TotalRequests    int `json:"totalRequests"`
	UniqueIPs        int `json:"uniqueIPs"`
	LogEntries       int `json:"logEntries"`
	RequestsLastHour int `json:"requestsLastHour"`
}

// Log holds the newest max entries, dropping the oldest first.
type Log struct {
	mu      sync.Mutex
	max     int
	entries []Entry
	total   int
	now     func() time.Time
}

// New creates a log capped at max entries. max <= 0 means 1000.
func New(max int) *Log {
	if max <= 0 {
		max = 1000
	}
	return &Log{max: max, now: time.Now}
}

// FromRequest builds an entry for r.
func FromRequest(r *http.Request) Entry {
	return Entry{
		IP:        mid.ClientIP(r),
		Method:    r.Method,
		Path:      r.URL.Path,
		UserAgent: r.UserAgent(),
	}
}

// Record appends e, assigning an id and timestamp if missing.
func (l *Log) Record(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}
	l.total++
	l.entries = append(l.entries, e)
	if over := len(l.entries) - l.max; over > 0 {
		l.entries = append(l.entries[:0:0], l.entries[over:]...)
	}
}

// Entries returns every retained entry, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Recent returns up to n entries, newest first.
func (l *Log) Recent(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Entry, 0, n)
	for i := len(l.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

// Stats counts requests since start and summarises the retained entries.
func (l *Log) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-time.Hour)
	ips := make(map[string]struct{})
	lastHour := 0
	for _, e := range l.entries {
		ips[e.IP] = struct{}{}
		if e.Timestamp.After(cutoff) {
			lastHour++
		}
	}
	return Stats{
		TotalRequests:    l.total,
		UniqueIPs:        len(ips),
		LogEntries:       len(l.entries),
		RequestsLastHour: lastHour,
	}
}
