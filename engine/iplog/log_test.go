package iplog

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRecordCapsAndDropsOldest(t *testing.T) {
	l := New(3)
	for i := 0; i < 5; i++ {
		l.Record(Entry{IP: fmt.Sprintf("10.0.0.%d", i)})
	}
	entries := l.Entries()
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	var ips []string
	for _, e := range entries {
		ips = append(ips, e.IP)
		if e.ID == "" || e.Timestamp.IsZero() {
			t.Errorf("entry missing id or timestamp: %+v", e)
		}
	}
	if diff := cmp.Diff([]string{"10.0.0.2", "10.0.0.3", "10.0.0.4"}, ips); diff != "" {
		t.Errorf("retained (-want +got):\n%s", diff)
	}
	if st := l.Stats(); st.TotalRequests != 5 || st.LogEntries != 3 {
		t.Errorf("stats = %+v", st)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	l := New(10)
	for _, ip := range []string{"a", "b", "c"} {
		l.Record(Entry{IP: ip})
	}
	got := l.Recent(2)
	if len(got) != 2 || got[0].IP != "c" || got[1].IP != "b" {
		t.Errorf("recent = %+v", got)
	}
	if len(l.Recent(20)) != 3 {
		t.Error("Recent should clamp to available entries")
	}
}

func TestStats(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l := New(10)
	l.now = func() time.Time { return now }

	l.Record(Entry{IP: "a", Timestamp: now.Add(-2 * time.Hour)})
	l.Record(Entry{IP: "a"})
	l.Record(Entry{IP: "b"})

	want := Stats{TotalRequests: 3, UniqueIPs: 2, LogEntries: 3, RequestsLastHour: 2}
	if diff := cmp.Diff(want, l.Stats()); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/analyze", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	r.Header.Set("User-Agent", "curl/8")

	e := FromRequest(r)
	want := Entry{IP: "203.0.113.7", Method: "POST", Path: "/api/analyze", UserAgent: "curl/8"}
	if diff := cmp.Diff(want, e); diff != "" {
		t.Errorf("entry (-want +got):\n%s", diff)
	}
}
