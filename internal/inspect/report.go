// Package inspect renders dispatch records from the state database for the
// CLI. It accepts full dispatch ids or unambiguous prefixes.
package inspect

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/snipq/snipq/internal/history"
)

// ErrNotFound is returned when no dispatch matches the given id.
var ErrNotFound = errors.New("dispatch not found")

// ErrAmbiguous is returned when an id prefix matches more than one dispatch.
var ErrAmbiguous = errors.New("dispatch id prefix is ambiguous")

// Report is the structured JSON representation of one dispatch.
type Report struct {
	DispatchID  string  `json:"dispatch_id"`
	Destination string  `json:"destination"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Status      string  `json:"status"`
	CacheHit    bool    `json:"cache_hit"`
	Attempts    int     `json:"attempts"`
	CreatedAt   string  `json:"created_at"`
	CompletedAt string  `json:"completed_at,omitempty"`
	Duration    string  `json:"duration,omitempty"`
	LastError   *string `json:"last_error,omitempty"`
}

// BuildReport renders a terminal-friendly report for a dispatch.
func BuildReport(ctx context.Context, db *sql.DB, dispatchID string) (string, error) {
	report, err := gatherReportData(ctx, db, dispatchID)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Dispatch Report\n")
	fmt.Fprintf(&out, "Dispatch ID : %s\n", report.DispatchID)
	fmt.Fprintf(&out, "Destination : %s\n", report.Destination)
	fmt.Fprintf(&out, "Provider    : %s\n", renderUnset(report.Provider, "<none>"))
	fmt.Fprintf(&out, "Model       : %s\n", renderUnset(report.Model, "<none>"))
	fmt.Fprintf(&out, "Status      : %s\n", report.Status)
	fmt.Fprintf(&out, "Cache hit   : %t\n", report.CacheHit)
	fmt.Fprintf(&out, "Attempts    : %d\n", report.Attempts)
	fmt.Fprintf(&out, "Created at  : %s\n", report.CreatedAt)
	if report.CompletedAt != "" {
		fmt.Fprintf(&out, "Completed at: %s\n", report.CompletedAt)
		fmt.Fprintf(&out, "Duration    : %s\n", report.Duration)
	} else {
		fmt.Fprintf(&out, "Completed at: <pending>\n")
	}
	if report.LastError != nil {
		fmt.Fprintf(&out, "Last error  : %s\n", *report.LastError)
	}

	return out.String(), nil
}

// BuildJSONReport returns the machine-readable JSON report.
func BuildJSONReport(ctx context.Context, db *sql.DB, dispatchID string) (string, error) {
	report, err := gatherReportData(ctx, db, dispatchID)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json report: %w", err)
	}
	return string(data), nil
}

func gatherReportData(ctx context.Context, db *sql.DB, dispatchID string) (*Report, error) {
	rec, err := lookupDispatch(ctx, db, dispatchID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		DispatchID:  rec.ID,
		Destination: rec.Destination,
		Provider:    string(rec.Provider),
		Model:       rec.Model,
		Status:      string(rec.Status),
		CacheHit:    rec.CacheHit,
		Attempts:    rec.Attempts,
		CreatedAt:   rec.CreatedAt.Format(time.RFC3339Nano),
		LastError:   rec.LastError,
	}
	if rec.CompletedAt != nil {
		report.CompletedAt = rec.CompletedAt.Format(time.RFC3339Nano)
		report.Duration = rec.CompletedAt.Sub(rec.CreatedAt).Round(time.Millisecond).String()
	}
	return report, nil
}

func lookupDispatch(ctx context.Context, db *sql.DB, dispatchID string) (*history.Record, error) {
	log := history.NewLog(db)

	rec, err := log.Get(ctx, dispatchID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Prefix lookup.
	matches, err := log.FindByPrefix(ctx, dispatchID)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, dispatchID)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s matches %d dispatches", ErrAmbiguous, dispatchID, len(matches))
	}
}

func renderUnset(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
