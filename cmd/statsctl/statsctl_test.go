package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityteam/stats-sub000/internal/auth"
	"github.com/cityteam/stats-sub000/internal/core"
	apphttp "github.com/cityteam/stats-sub000/internal/http"
	applog "github.com/cityteam/stats-sub000/internal/log"
	"github.com/cityteam/stats-sub000/internal/report"
	"github.com/cityteam/stats-sub000/internal/services"
	"github.com/cityteam/stats-sub000/internal/storage/memory"
)

type fixture struct {
	url       string
	facility  core.Facility
	section   core.Section
	breakfast core.Category
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger = applog.New(applog.Config{Output: io.Discard})

	ctx := context.Background()
	store := memory.New()
	issuer := auth.NewIssuer("test-secret-0123456789", time.Hour)
	reports := services.NewReportService(store, nil)
	users := services.NewUserService(store, issuer)

	var fx fixture
	var err error
	fx.facility, err = store.CreateFacility(ctx, core.Facility{Name: "Portland", Scope: "pdx", Active: true})
	require.NoError(t, err)
	fx.section, err = store.CreateSection(ctx, core.Section{FacilityID: fx.facility.ID, Ordinal: 1, Slug: "meals", Scope: "meals", Active: true})
	require.NoError(t, err)
	fx.breakfast, err = store.CreateCategory(ctx, core.Category{SectionID: fx.section.ID, Ordinal: 1, Slug: "Breakfast", Type: core.CategoryDetail, Active: true})
	require.NoError(t, err)
	_, err = store.WriteSummary(ctx, core.Summary{SectionID: fx.section.ID, Date: "2024-02-03", Values: map[int64]*int64{fx.breakfast.ID: core.Int64(5)}})
	require.NoError(t, err)
	_, err = users.CreateUser(ctx, core.User{Name: "Clerk", Username: "clerk", Password: "password1", Scope: "pdx:regular", Active: true})
	require.NoError(t, err)

	srv, err := apphttp.NewServer(":0", apphttp.Deps{
		Statistics: services.NewStatisticsService(store, nil, reports),
		Reports:    reports,
		Users:      users,
		Tokens:     issuer,
		Storage:    store,
	}, apphttp.Options{Logger: logger, RateLimitPerMinute: 10000})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	fx.url = ts.URL
	return fx
}

func (fx fixture) flags(format string) reportFlags {
	return reportFlags{
		server:     fx.url,
		username:   "clerk",
		password:   "password1",
		facilityID: fx.facility.ID,
		sectionID:  fx.section.ID,
		format:     format,
	}
}

func TestRunReportMonthlyCSV(t *testing.T) {
	fx := newFixture(t)
	r, err := report.MonthRange("2024-02")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, runReport(context.Background(), &buf, fx.flags("csv"), r, "2024-02"))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Len(t, records[0], 29+2)
	assert.Equal(t, "2024-02-01", records[0][1])
	assert.Equal(t, []string{"Breakfast", "", "", "5"}, records[1][:4])
	assert.Equal(t, "5", records[1][len(records[1])-1])
	assert.Equal(t, report.TotalsLabel, records[2][0])
}

func TestRunReportYearlyTable(t *testing.T) {
	fx := newFixture(t)

	var buf bytes.Buffer
	require.NoError(t, runReport(context.Background(), &buf, fx.flags("table"), report.YearRange(2024), "2024"))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "2024-12")
	assert.Contains(t, lines[1], "Breakfast")
	assert.Contains(t, lines[2], report.TotalsLabel)
}

func TestRunReportErrors(t *testing.T) {
	fx := newFixture(t)
	r := report.YearRange(2024)

	err := runReport(context.Background(), io.Discard, fx.flags("pdf"), r, "2024")
	assert.ErrorContains(t, err, "unknown format")

	err = runReport(context.Background(), io.Discard, fx.flags("xlsx"), r, "2024")
	assert.ErrorContains(t, err, "--output")

	bad := fx.flags("csv")
	bad.password = "wrong"
	err = runReport(context.Background(), io.Discard, bad, r, "2024")
	assert.ErrorContains(t, err, "login")

	missing := fx.flags("csv")
	missing.sectionID = 999
	err = runReport(context.Background(), io.Discard, missing, r, "2024")
	assert.Error(t, err)
}

func TestRunReportXLSXFile(t *testing.T) {
	fx := newFixture(t)
	f := fx.flags("xlsx")
	f.output = filepath.Join(t.TempDir(), "report.xlsx")

	require.NoError(t, runReport(context.Background(), io.Discard, f, report.YearRange(2024), "2024"))
	assert.FileExists(t, f.output)
}

func TestWriteTableAligns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, [][]string{{"Category", "Total"}, {"Breakfast", "5"}}))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, len(lines[0]), len(lines[1]))
}

func TestMigrateAndUserCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "stats.db")
	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(io.Discard)
		rootCmd.SetArgs(append([]string{"--db", db}, args...))
		require.NoError(t, rootCmd.Execute())
		return out.String()
	}

	assert.Equal(t, "version 1\n", run("migrate", "up"))
	assert.Equal(t, "version 1\n", run("migrate", "version"))
	assert.Contains(t, run("user", "add", "root", "--scope", "superuser", "--password", "password1"), "created user")
	assert.Contains(t, run("user", "list"), "root")
}
