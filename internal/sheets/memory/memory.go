// Package memory keeps exported reports in process, for development
// without a spreadsheet and for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cityteam/stats-sub000/internal/sheets"
)

type Store struct {
	mu      sync.Mutex
	tabs    map[string][][]string
	exports int
}

var _ sheets.ReportExporter = (*Store)(nil)

func New() *Store {
	return &Store{tabs: map[string][][]string{}}
}

// ExportReport replaces the tab with a copy of records.
func (s *Store) ExportReport(ctx context.Context, tab string, records [][]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if tab == "" {
		return "", fmt.Errorf("empty tab name")
	}
	cp := make([][]string, len(records))
	for i, r := range records {
		cp[i] = append([]string(nil), r...)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[tab] = cp
	s.exports++
	return fmt.Sprintf("mem:%s!A1", tab), nil
}

// Tab returns the records last exported to tab.
func (s *Store) Tab(tab string) ([][]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.tabs[tab]
	return r, ok
}

// Tabs lists the tab names in order.
func (s *Store) Tabs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tabs))
	for t := range s.tabs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Exports counts ExportReport calls that succeeded.
func (s *Store) Exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exports
}
