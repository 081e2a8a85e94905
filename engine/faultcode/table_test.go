package faultcode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustDefault(t *testing.T) *Table {
	t.Helper()
	tbl, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	return tbl
}

func TestDefaultTableHasKnownCodes(t *testing.T) {
	tbl := mustDefault(t)
	for _, code := range []string{"P0171", "P0300", "P0420", "EGR", "E01", "U0100"} {
		r, ok := tbl.Lookup(code)
		if !ok {
			t.Errorf("expected %s in the built-in table", code)
			continue
		}
		if r.Code != code || r.Description == "" || len(r.Causes) == 0 || len(r.Solutions) == 0 || r.Safety == "" {
			t.Errorf("%s is incomplete: %+v", code, r)
		}
	}
}

func TestLookupCaseInsensitive(t *testing.T) {
	tbl := mustDefault(t)
	upper, ok := tbl.Lookup("P0300")
	if !ok {
		t.Fatal("P0300 missing")
	}
	lower, ok := tbl.Lookup(" p0300 ")
	if !ok {
		t.Fatal("lowercase lookup missed")
	}
	if diff := cmp.Diff(upper, lower); diff != "" {
		t.Fatalf("lookup mismatch (-upper +lower):\n%s", diff)
	}
}

func TestLookupExactOnly(t *testing.T) {
	tbl := mustDefault(t)
	for _, code := range []string{"P030", "P03000", "P9999", ""} {
		if _, ok := tbl.Lookup(code); ok {
			t.Errorf("expected miss for %q", code)
		}
	}
}

func TestLookupReturnsCopies(t *testing.T) {
	tbl := mustDefault(t)
	r, _ := tbl.Lookup("P0171")
	r.Causes[0] = "tampered"
	r.Description = "tampered"

	again, _ := tbl.Lookup("P0171")
	if again.Causes[0] == "tampered" || again.Description == "tampered" {
		t.Fatal("table mutated through a lookup result")
	}
}

func TestNewTableNormalizesKeys(t *testing.T) {
	tbl := NewTable(map[string]Record{"p1234": {Description: "custom"}})
	r, ok := tbl.Lookup("P1234")
	if !ok || r.Code != "P1234" || r.Description != "custom" {
		t.Fatalf("unexpected lookup %+v ok=%v", r, ok)
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len = %d", tbl.Len())
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.yaml")
	doc := `
p0171:
  description: Overridden lean description
  causes: [a]
  solutions: [b]
  safety: c
X100:
  description: Extra code
  causes: [d]
  solutions: [e]
  safety: f
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	base := mustDefault(t)
	if tbl.Len() != base.Len()+1 {
		t.Fatalf("Len = %d, want %d", tbl.Len(), base.Len()+1)
	}
	r, _ := tbl.Lookup("P0171")
	if r.Description != "Overridden lean description" {
		t.Fatalf("overlay not applied: %+v", r)
	}
	if _, ok := tbl.Lookup("x100"); !ok {
		t.Fatal("extra code missing")
	}
}

func TestLoadEmptyPathAndErrors(t *testing.T) {
	tbl, err := Load("")
	if err != nil || tbl.Len() != mustDefault(t).Len() {
		t.Fatalf("Load(\"\") = %v, %v", tbl, err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("P0171: [unclosed"), 0o644)
	if _, err := Load(bad); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCodesSortedAndMarshalRoundTrip(t *testing.T) {
	tbl := mustDefault(t)
	codes := tbl.Codes()
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Fatalf("codes not sorted: %v", codes)
		}
	}

	recs := map[string]Record{}
	for _, c := range codes {
		r, _ := tbl.Lookup(c)
		recs[c] = r
	}
	data, err := Marshal(recs)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(recs, parsed); diff != "" {
		t.Fatalf("round trip mismatch:\n%s", diff)
	}
}
