package powerquery

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/craftedsignal/sigma-powerquery/sigma"
)

func TestFinalize_ColumnsClause(t *testing.T) {
	meta := sigma.Metadata{Fields: []string{"ProcessName", "CommandLine"}}
	got := Finalize(`ProcessName = "cmd.exe"`, meta)
	want := `ProcessName = "cmd.exe" | columns ProcessName,CommandLine`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFinalize_NoFields(t *testing.T) {
	got := Finalize(`ProcessName = "cmd.exe"`, sigma.Metadata{})
	if got != `ProcessName = "cmd.exe"` {
		t.Errorf("query without fields must be untouched, got %q", got)
	}
}

func TestFinalizeRecord(t *testing.T) {
	meta := sigma.Metadata{
		Title:       "Suspicious Process",
		ID:          "6f8a1c2e-8e1d-4b7e-9c3f-0a1b2c3d4e5f",
		Description: "Detects a suspicious process",
		Fields:      []string{"ProcessName"},
	}
	rec := FinalizeRecord(`ProcessName = "cmd.exe"`, meta)

	if rec.Query != `ProcessName = "cmd.exe" | columns ProcessName` {
		t.Errorf("unexpected query: %q", rec.Query)
	}
	if rec.Title != meta.Title || rec.ID != meta.ID || rec.Description != meta.Description {
		t.Errorf("metadata not carried into record: %+v", rec)
	}

	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"query"`, `"title"`, `"id"`, `"description"`} {
		if !strings.Contains(string(out), key) {
			t.Errorf("JSON output missing key %s: %s", key, out)
		}
	}
}

func TestFinalizeReport_PreservesOrder(t *testing.T) {
	queries := []string{"q1", "q2", "q3"}
	report := FinalizeReport(queries)
	if len(report.Queries) != 3 {
		t.Fatalf("expected 3 queries, got %d", len(report.Queries))
	}
	for i, q := range queries {
		if report.Queries[i] != q {
			t.Errorf("slot %d: got %q, want %q", i, report.Queries[i], q)
		}
	}
}
