package inspect

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/snipq/snipq/internal/history"
	"github.com/snipq/snipq/internal/provider"
	"github.com/snipq/snipq/internal/storage"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "snipq.db")
	db, err := storage.OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBuildReportCompletedDispatch(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	log := history.NewLog(db)

	if err := log.Begin(ctx, "disp-aaaa-1111", "tab-42", provider.OpenAI, "gpt-4o-mini"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := log.Complete(ctx, "disp-aaaa-1111", history.StatusDelivered, true, 1, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	out, err := BuildReport(ctx, db, "disp-aaaa-1111")
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}

	for _, want := range []string{
		"Dispatch Report",
		"Dispatch ID : disp-aaaa-1111",
		"Destination : tab-42",
		"Provider    : openai",
		"Model       : gpt-4o-mini",
		"Status      : delivered",
		"Cache hit   : true",
		"Completed at:",
		"Duration    :",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "Last error") {
		t.Errorf("report should omit error line for clean dispatch\n%s", out)
	}
}

func TestBuildReportPendingDispatch(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	log := history.NewLog(db)

	if err := log.Begin(ctx, "disp-pending", "tab-1", provider.Anthropic, "claude-sonnet-4"); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	out, err := BuildReport(ctx, db, "disp-pending")
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if !strings.Contains(out, "Completed at: <pending>") {
		t.Errorf("expected pending marker\n%s", out)
	}
}

func TestBuildReportPrefixLookup(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	log := history.NewLog(db)

	if err := log.Begin(ctx, "aaaa-unique", "tab-1", provider.OpenAI, "m"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := log.Begin(ctx, "bbbb-1111", "tab-2", provider.OpenAI, "m"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := log.Begin(ctx, "bbbb-2222", "tab-3", provider.OpenAI, "m"); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	out, err := BuildReport(ctx, db, "aaaa")
	if err != nil {
		t.Fatalf("BuildReport(prefix): %v", err)
	}
	if !strings.Contains(out, "aaaa-unique") {
		t.Errorf("prefix lookup should resolve full id\n%s", out)
	}

	if _, err := BuildReport(ctx, db, "bbbb"); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("expected ErrAmbiguous, got %v", err)
	}
	if _, err := BuildReport(ctx, db, "cccc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBuildJSONReport(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	log := history.NewLog(db)

	if err := log.Begin(ctx, "disp-json", "tab-7", provider.Gemini, "gemini-2.0-flash"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	lastErr := "gemini: API key not valid"
	if err := log.Complete(ctx, "disp-json", history.StatusFailed, false, 4, &lastErr); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	out, err := BuildJSONReport(ctx, db, "disp-json")
	if err != nil {
		t.Fatalf("BuildJSONReport: %v", err)
	}

	var report Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if report.DispatchID != "disp-json" {
		t.Errorf("DispatchID = %q", report.DispatchID)
	}
	if report.Status != "failed" {
		t.Errorf("Status = %q", report.Status)
	}
	if report.Attempts != 4 {
		t.Errorf("Attempts = %d", report.Attempts)
	}
	if report.LastError == nil || *report.LastError != lastErr {
		t.Errorf("LastError = %v", report.LastError)
	}
	if report.Duration == "" {
		t.Errorf("expected duration for completed dispatch")
	}
}
