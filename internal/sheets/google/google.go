// Package google exports reports to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	applog "github.com/cityteam/stats-sub000/internal/log"
	ports "github.com/cityteam/stats-sub000/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu   sync.Mutex
	tabs map[string]struct{} // tabs known to exist
}

var _ ports.ReportExporter = (*Client)(nil)

var ErrMissingSpreadsheetID = errors.New("missing GOOGLE_SPREADSHEET_ID")

// New creates a Sheets client for spreadsheetID using service account
// credentials from the environment.
func New(ctx context.Context, spreadsheetID string, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, ErrMissingSpreadsheetID
	}
	if len(opts) == 0 {
		creds, err := credentialsFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID)
	return &Client{svc: svc, spreadsheetID: spreadsheetID, tabs: map[string]struct{}{}}, nil
}

// credentialsFromEnv reads GOOGLE_SERVICE_ACCOUNT_JSON, then
// GOOGLE_SERVICE_ACCOUNT_FILE, then GOOGLE_APPLICATION_CREDENTIALS.
func credentialsFromEnv(ctx context.Context) ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	slog.DebugContext(ctx, "Reading service account credentials", "path", path)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// ExportReport clears the tab and writes records from A1.
func (c *Client) ExportReport(ctx context.Context, tab string, records [][]string) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if tab == "" {
		return "", errors.New("empty tab name")
	}
	if err := c.ensureTab(ctx, tab); err != nil {
		return "", err
	}

	whole := quoteTab(tab)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, whole, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", whole, err)
	}

	rng := whole + "!A1"
	vr := &gsheet.ValueRange{Values: cells(records)}
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}
	applog.FromContext(ctx).WithComponent(applog.ComponentSheets).DebugContext(ctx, "Report written to sheet",
		applog.FieldSheetTab, tab,
		"updated_range", resp.UpdatedRange,
		"updated_cells", resp.UpdatedCells)
	return resp.UpdatedRange, nil
}

// ensureTab adds the tab unless it is already known to exist.
func (c *Client) ensureTab(ctx context.Context, tab string) error {
	c.mu.Lock()
	_, known := c.tabs[tab]
	c.mu.Unlock()
	if known {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	c.mu.Lock()
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.tabs[sh.Properties.Title] = struct{}{}
		}
	}
	_, known = c.tabs[tab]
	c.mu.Unlock()
	if known {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %q: %w", tab, err)
	}
	applog.FromContext(ctx).WithComponent(applog.ComponentSheets).InfoContext(ctx, "Created sheet tab", applog.FieldSheetTab, tab)
	c.mu.Lock()
	c.tabs[tab] = struct{}{}
	c.mu.Unlock()
	return nil
}

// quoteTab quotes a tab title for A1 notation.
func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

func cells(records [][]string) [][]any {
	out := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		out[i] = row
	}
	return out
}
