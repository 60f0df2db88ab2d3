package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ")
	if !errors.Is(err, ErrMissingSpreadsheetID) {
		t.Fatalf("expected ErrMissingSpreadsheetID, got %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), "sheet-id")
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", t.TempDir()+"/missing.json")

	_, err := New(context.Background(), "sheet-id")
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestQuoteTab(t *testing.T) {
	tests := map[string]string{
		"pdx-meals-2024-01": "'pdx-meals-2024-01'",
		"O'Brien":           "'O''Brien'",
	}
	for in, want := range tests {
		if got := quoteTab(in); got != want {
			t.Errorf("quoteTab(%q) = %q, want %q", in, got, want)
		}
	}
}

// fakeSheets answers the three calls an export makes and records them.
type fakeSheets struct {
	mu     sync.Mutex
	titles []string
	calls  []string
	values [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sheet-id"):
		f.calls = append(f.calls, "get")
		sheets := make([]map[string]any, 0, len(f.titles))
		for _, t := range f.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": t}})
		}
		json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req struct {
			Requests []struct {
				AddSheet struct {
					Properties struct {
						Title string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
			} `json:"requests"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			f.titles = append(f.titles, rq.AddSheet.Properties.Title)
		}
		f.calls = append(f.calls, "add")
		w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.calls = append(f.calls, "clear")
		w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		var vr struct {
			Values [][]any `json:"values"`
		}
		json.NewDecoder(r.Body).Decode(&vr)
		f.values = vr.Values
		f.calls = append(f.calls, "update:"+r.URL.Query().Get("valueInputOption"))
		json.NewEncoder(w).Encode(map[string]any{"updatedRange": "'pdx-meals-2024-01'!A1:C2", "updatedCells": 6})
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func TestExportReport(t *testing.T) {
	fake := &fakeSheets{titles: []string{"Sheet1"}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c, err := New(context.Background(), "sheet-id",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}

	records := [][]string{{"Category", "2024-01-01", "Total"}, {"Breakfast", "", "0"}}
	ref, err := c.ExportReport(context.Background(), "pdx-meals-2024-01", records)
	if err != nil {
		t.Fatalf("ExportReport() error = %v", err)
	}
	if ref != "'pdx-meals-2024-01'!A1:C2" {
		t.Errorf("ref = %q", ref)
	}

	// A second export to the same tab must not look the tab up again.
	if _, err := c.ExportReport(context.Background(), "pdx-meals-2024-01", records); err != nil {
		t.Fatal(err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	want := []string{"get", "add", "clear", "update:USER_ENTERED", "clear", "update:USER_ENTERED"}
	if strings.Join(fake.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", fake.calls, want)
	}
	if len(fake.values) != 2 || fake.values[1][0] != "Breakfast" || fake.values[1][1] != "" {
		t.Errorf("values = %v", fake.values)
	}
}

func TestExportReport_Uninitialized(t *testing.T) {
	c := &Client{}
	if _, err := c.ExportReport(context.Background(), "tab", nil); err == nil {
		t.Error("expected error for uninitialized client")
	}
}
