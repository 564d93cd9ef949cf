package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"wavelift/internal/ledger"
	"wavelift/internal/stats"
	"wavelift/internal/testsupport"
)

func TestBatchLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	l := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := l.BeginBatch(ctx, "list-7", 3, 1, started)
	if err != nil {
		t.Fatalf("BeginBatch: %v", err)
	}
	if id == 0 {
		t.Fatal("expected batch id to be assigned")
	}

	results := []stats.Result{
		{ItemID: "a", Locator: "https://v.example/a", Owner: "alice", Outcome: stats.OutcomeSucceeded, StoredKey: "audio/alice/a.wav", Duration: 1500 * time.Millisecond},
		{ItemID: "b", Locator: "https://v.example/b", Owner: "bob", Outcome: stats.OutcomeSkipped, Stage: "probe"},
		{ItemID: "c", Locator: "https://v.example/c", Outcome: stats.OutcomeFailed, Stage: "resolve", Detail: "video unavailable"},
	}
	for _, r := range results {
		if err := l.RecordItem(ctx, id, r, started.Add(time.Second)); err != nil {
			t.Fatalf("RecordItem: %v", err)
		}
	}

	snap := stats.Snapshot{Total: 3, Succeeded: 1, Skipped: 1, Failed: 1}
	if err := l.FinishBatch(ctx, id, "PartialSuccess", snap, true, started.Add(time.Minute)); err != nil {
		t.Fatalf("FinishBatch: %v", err)
	}

	b, err := l.FindBatch(ctx, "list-7")
	if err != nil {
		t.Fatalf("FindBatch: %v", err)
	}
	if b.Status != "PartialSuccess" || b.Succeeded != 1 || b.Skipped != 1 || b.Failed != 1 {
		t.Fatalf("unexpected batch: %+v", b)
	}
	if b.Total != 3 || b.Rejected != 1 || !b.ReportSent {
		t.Fatalf("unexpected batch counts: %+v", b)
	}
	if !b.StartedAt.Equal(started) || !b.FinishedAt.Equal(started.Add(time.Minute)) {
		t.Fatalf("unexpected timestamps: %s %s", b.StartedAt, b.FinishedAt)
	}

	items, err := l.Items(ctx, id, "")
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].ItemID != "a" || items[0].Duration != 1500*time.Millisecond || items[0].StoredKey != "audio/alice/a.wav" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}

	failed, err := l.Items(ctx, id, stats.OutcomeFailed.String())
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Detail != "video unavailable" {
		t.Fatalf("unexpected failed items: %+v", failed)
	}
}

func TestFindBatchLatestRunAndNumericFallback(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	l := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()
	now := time.Now()

	first, err := l.BeginBatch(ctx, "dup", 1, 0, now)
	if err != nil {
		t.Fatalf("BeginBatch: %v", err)
	}
	second, err := l.BeginBatch(ctx, "dup", 2, 0, now)
	if err != nil {
		t.Fatalf("BeginBatch: %v", err)
	}

	b, err := l.FindBatch(ctx, "dup")
	if err != nil {
		t.Fatalf("FindBatch: %v", err)
	}
	if b.ID != second {
		t.Fatalf("expected latest run %d, got %d", second, b.ID)
	}
	if b.Status != ledger.StatusRunning || !b.FinishedAt.IsZero() {
		t.Fatalf("expected unfinished batch, got %+v", b)
	}

	byID, err := l.FindBatch(ctx, strconv.FormatInt(first, 10))
	if err != nil {
		t.Fatalf("FindBatch by id: %v", err)
	}
	if byID.ID != first {
		t.Fatalf("expected batch %d, got %d", first, byID.ID)
	}

	if _, err := l.FindBatch(ctx, "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecentBatchesNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	l := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := l.BeginBatch(ctx, "list-"+strconv.Itoa(i), i, 0, time.Now()); err != nil {
			t.Fatalf("BeginBatch: %v", err)
		}
	}
	batches, err := l.RecentBatches(ctx, 3)
	if err != nil {
		t.Fatalf("RecentBatches: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if batches[0].ListID != "list-4" || batches[2].ListID != "list-2" {
		t.Fatalf("unexpected order: %s .. %s", batches[0].ListID, batches[2].ListID)
	}
}

func TestFinishUnknownBatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	l := testsupport.MustOpenLedger(t, cfg)

	err := l.FinishBatch(context.Background(), 999, "Completed", stats.Snapshot{}, false, time.Now())
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := ledger.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	_ = l.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := ledger.OpenPath(path); !errors.Is(err, ledger.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := ledger.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if _, err := l.BeginBatch(context.Background(), "persisted", 1, 0, time.Now()); err != nil {
		t.Fatalf("BeginBatch: %v", err)
	}
	_ = l.Close()

	l, err = ledger.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()
	if _, err := l.FindBatch(context.Background(), "persisted"); err != nil {
		t.Fatalf("expected persisted batch: %v", err)
	}
}
