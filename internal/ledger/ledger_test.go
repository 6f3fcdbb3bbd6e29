package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func sampleRun(start time.Time) Run {
	return Run{
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Total:      5,
		Processed:  4,
		Failed:     1,
		Skipped:    2,
	}
}

func TestRecordAndReadRun(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	outcomes := []CallOutcome{
		{RowNumber: 2, Artifact: "call_1_29_26_jyoti_8738_1.json", RecordingLink: "https://drive/a"},
		{RowNumber: 3, Error: "no speech recognized in recording", RecordingLink: "https://drive/b"},
	}
	runID, err := l.RecordRun(ctx, sampleRun(time.Now().UTC()), outcomes)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if runID == 0 {
		t.Fatal("runID = 0")
	}

	runs, err := l.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	got := runs[0]
	if got.ID != runID || got.Total != 5 || got.Processed != 4 || got.Failed != 1 || got.Skipped != 2 {
		t.Errorf("run = %+v", got)
	}

	calls, err := l.CallsForRun(ctx, runID)
	if err != nil {
		t.Fatalf("CallsForRun: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].RowNumber != 2 || calls[0].Artifact == "" || calls[0].Error != "" {
		t.Errorf("call[0] = %+v", calls[0])
	}
	if calls[1].RowNumber != 3 || calls[1].Error == "" || calls[1].Artifact != "" {
		t.Errorf("call[1] = %+v", calls[1])
	}
}

func TestRecentRunsOrderAndLimit(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	base := time.Now().UTC()
	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := l.RecordRun(ctx, sampleRun(base.Add(time.Duration(i)*time.Minute)), nil)
		if err != nil {
			t.Fatalf("RecordRun #%d: %v", i, err)
		}
		ids = append(ids, id)
	}

	runs, err := l.RecentRuns(ctx, 3)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	if runs[0].ID != ids[4] || runs[2].ID != ids[2] {
		t.Errorf("order wrong: got ids %d,%d,%d", runs[0].ID, runs[1].ID, runs[2].ID)
	}
}

func TestCallsForRunIsolatedPerRun(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	first, err := l.RecordRun(ctx, sampleRun(time.Now().UTC()), []CallOutcome{{RowNumber: 2, Artifact: "a.json"}})
	if err != nil {
		t.Fatal(err)
	}
	second, err := l.RecordRun(ctx, sampleRun(time.Now().UTC()), []CallOutcome{
		{RowNumber: 4, Artifact: "b.json"},
		{RowNumber: 5, Error: "boom"},
	})
	if err != nil {
		t.Fatal(err)
	}

	calls, err := l.CallsForRun(ctx, first)
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 || calls[0].Artifact != "a.json" {
		t.Errorf("first run calls = %+v", calls)
	}

	calls, err = l.CallsForRun(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 2 {
		t.Errorf("second run calls = %+v", calls)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.RecordRun(context.Background(), sampleRun(time.Now().UTC()), nil); err != nil {
		t.Fatal(err)
	}
	l.Close()

	// Reopening migrates again over the existing schema and data.
	l, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()
	runs, err := l.RecentRuns(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("got %d runs after reopen, want 1", len(runs))
	}
}
