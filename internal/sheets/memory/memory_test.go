package memory

import (
	"context"
	"testing"
)

func TestExportReplacesTab(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.ExportReport(ctx, "pdx-meals-2024-01", [][]string{{"Category", "Total"}, {"Breakfast", "3"}})
	if err != nil || ref != "mem:pdx-meals-2024-01!A1" {
		t.Fatalf("unexpected export: ref=%q err=%v", ref, err)
	}
	records := [][]string{{"Category", "Total"}}
	if _, err := s.ExportReport(ctx, "pdx-meals-2024-01", records); err != nil {
		t.Fatal(err)
	}
	records[0][0] = "mutated"

	got, ok := s.Tab("pdx-meals-2024-01")
	if !ok || len(got) != 1 || got[0][0] != "Category" {
		t.Fatalf("tab not replaced with a copy: %v", got)
	}
	if s.Exports() != 2 {
		t.Errorf("Exports() = %d, want 2", s.Exports())
	}
}

func TestExportRejects(t *testing.T) {
	s := New()
	if _, err := s.ExportReport(context.Background(), "", nil); err == nil {
		t.Error("expected error for empty tab")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ExportReport(ctx, "x", nil); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(s.Tabs()) != 0 {
		t.Errorf("nothing should be stored, got %v", s.Tabs())
	}
}
