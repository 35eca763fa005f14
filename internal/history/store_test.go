package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"vidqc/internal/qc"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleReport(id, file string, started time.Time) *qc.Report {
	return &qc.Report{
		RunID:    id,
		File:     file,
		Channels: 2,
		Mute:     []qc.MuteSegment{{Channel: 1, Start: 1, End: 3, Duration: 2}},
		Peaks:    []qc.Peak{{Channel: 2, Time: 4.5, Duration: 0.01}},
		Checks: []qc.CheckResult{
			{Name: qc.CheckMute, Status: qc.StatusIssues, Count: 1},
			{Name: qc.CheckShortShots, Status: qc.StatusError, Detail: "ffmpeg: exit status 1"},
			{Name: qc.CheckPeaks, Status: qc.StatusIssues, Count: 1},
			{Name: qc.CheckBlack, Status: qc.StatusOK},
		},
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	report := sampleReport("3f2a9c1e-0000-4000-8000-000000000001", "/media/a.mov", started)

	if err := store.Save(ctx, report); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Get(ctx, report.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.File != report.File || len(got.Mute) != 1 || got.Peaks[0].Time != 4.5 {
		t.Fatalf("unexpected report: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Fatalf("unexpected start time %v", got.StartedAt)
	}

	checks, err := store.Checks(ctx, report.RunID)
	if err != nil {
		t.Fatalf("Checks: %v", err)
	}
	if len(checks) != 4 || checks[1].Status != qc.StatusError || checks[1].Detail == "" {
		t.Fatalf("unexpected checks: %+v", checks)
	}
}

func TestSaveReplacesSameRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	report := sampleReport("run-0001", "/media/a.mov", time.Now())
	if err := store.Save(ctx, report); err != nil {
		t.Fatalf("Save: %v", err)
	}
	report.Mute = nil
	if err := store.Save(ctx, report); err != nil {
		t.Fatalf("Save again: %v", err)
	}
	runs, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 || runs[0].IssueCount != 1 || runs[0].FailedChecks != 1 {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestListNewestFirstWithFilters(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// the half-second offset catches lexical ordering bugs in timestamps
	for i, file := range []string{"/m/a.mov", "/m/b.mov", "/m/a.mov"} {
		started := base.Add(time.Duration(i)*time.Second + 500*time.Millisecond*time.Duration(i%2))
		id := []string{"aaaa-1", "bbbb-2", "cccc-3"}[i]
		if err := store.Save(ctx, sampleReport(id, file, started)); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	runs, err := store.List(ctx, ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "cccc-3" || runs[1].RunID != "bbbb-2" {
		t.Fatalf("unexpected order: %+v", runs)
	}

	runs, err = store.List(ctx, ListOptions{File: "/m/a.mov"})
	if err != nil {
		t.Fatalf("List file: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs for a.mov, got %d", len(runs))
	}
}

func TestGetByPrefix(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for _, id := range []string{"abcd1111", "abcd2222", "ffff0000"} {
		if err := store.Save(ctx, sampleReport(id, "/m/x.mov", time.Now())); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, err := store.Get(ctx, "ffff")
	if err != nil || got.RunID != "ffff0000" {
		t.Fatalf("prefix lookup = %+v, %v", got, err)
	}
	if _, err := store.Get(ctx, "abcd"); !errors.Is(err, ErrAmbiguousID) {
		t.Fatalf("expected ErrAmbiguousID, got %v", err)
	}
	if _, err := store.Get(ctx, "ab"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected short prefix to be rejected, got %v", err)
	}
	if _, err := store.Get(ctx, "zzzz9999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		if err := store.Save(ctx, sampleReport(id, "/m/x.mov", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	removed, err := store.Prune(ctx, 1)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	runs, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-c" {
		t.Fatalf("unexpected remaining runs: %+v", runs)
	}
	if checks, err := store.Checks(ctx, "run-c"); err != nil || len(checks) != 4 {
		t.Fatalf("expected checks kept for run-c, got %d (%v)", len(checks), err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.Save(context.Background(), sampleReport("keep-1", "/m/x.mov", time.Now())); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if _, err := second.Get(context.Background(), "keep-1"); err != nil {
		t.Fatalf("expected run to survive reopen: %v", err)
	}
}

func TestSaveRequiresRunID(t *testing.T) {
	store := openStore(t)
	if err := store.Save(context.Background(), &qc.Report{}); err == nil {
		t.Fatal("expected error for report without run id")
	}
}
