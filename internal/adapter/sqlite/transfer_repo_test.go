package sqlite

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vertextoedge/artifact-fetcher/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "db", "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_TransferLifecycle(t *testing.T) {
	store := openTestStore(t)

	rec := &domain.TransferRecord{
		ID:             "b7c1d1c6-0001",
		URL:            "https://example.com/pkg.msix",
		DestPath:       "/tmp/pkg.msix",
		ExpectedDigest: "ABCDEF",
	}
	if err := store.CreateTransfer(rec); err != nil {
		t.Fatalf("CreateTransfer() error = %v", err)
	}
	if rec.Status != domain.TransferStatusRunning || rec.CreatedAt.IsZero() {
		t.Errorf("CreateTransfer() did not fill defaults: %+v", rec)
	}

	rec.MarkCompleted(&domain.TransferResult{
		BytesWritten: 4096,
		Elapsed:      1500 * time.Millisecond,
		Strategy:     domain.StrategySegmented,
		Segments:     4,
		ResolvedURL:  "https://cdn.example.com/pkg.msix",
	})
	if err := store.CompleteTransfer(rec); err != nil {
		t.Fatalf("CompleteTransfer() error = %v", err)
	}
	if err := store.MarkVerified(rec.ID, true); err != nil {
		t.Fatalf("MarkVerified() error = %v", err)
	}

	got, err := store.GetTransfer(rec.ID)
	if err != nil {
		t.Fatalf("GetTransfer() error = %v", err)
	}
	if got.Status != domain.TransferStatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.Strategy != domain.StrategySegmented || got.Segments != 4 || got.BytesWritten != 4096 {
		t.Errorf("outcome = %s/%d/%d", got.Strategy, got.Segments, got.BytesWritten)
	}
	if got.Elapsed != 1500*time.Millisecond {
		t.Errorf("Elapsed = %v, want 1.5s", got.Elapsed)
	}
	if got.ResolvedURL != "https://cdn.example.com/pkg.msix" {
		t.Errorf("ResolvedURL = %q", got.ResolvedURL)
	}
	if !got.Verified || got.CompletedAt == nil {
		t.Errorf("Verified = %v, CompletedAt = %v", got.Verified, got.CompletedAt)
	}
	if got.ExpectedDigest != "abcdef" {
		t.Errorf("ExpectedDigest = %q, want lowercase", got.ExpectedDigest)
	}

	found, err := store.FindVerified("/tmp/pkg.msix", "AbCdEf")
	if err != nil || found == nil || found.ID != rec.ID {
		t.Errorf("FindVerified() = (%v, %v), want %s", found, err, rec.ID)
	}
}

func TestStore_FailTransfer(t *testing.T) {
	store := openTestStore(t)

	rec := &domain.TransferRecord{ID: "t-fail", URL: "https://example.com/a", DestPath: "/tmp/a"}
	if err := store.CreateTransfer(rec); err != nil {
		t.Fatalf("CreateTransfer() error = %v", err)
	}

	rec.MarkFailed(domain.NewSegmentError(2, domain.KindTransport, rec.URL, errors.New("connection reset")))
	if err := store.FailTransfer(rec); err != nil {
		t.Fatalf("FailTransfer() error = %v", err)
	}

	got, err := store.GetTransfer(rec.ID)
	if err != nil {
		t.Fatalf("GetTransfer() error = %v", err)
	}
	if got.Status != domain.TransferStatusFailed || got.FailedStage != "segment" {
		t.Errorf("Status/Stage = %q/%q", got.Status, got.FailedStage)
	}
	if got.LastError == "" {
		t.Error("LastError should be stored")
	}

	if found, err := store.FindVerified("/tmp/a", ""); err != nil || found != nil {
		t.Errorf("FindVerified() = (%v, %v), want nothing", found, err)
	}
}

func TestStore_Errors(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.GetTransfer("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetTransfer(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.MarkVerified("missing", true); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("MarkVerified(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.CompleteTransfer(&domain.TransferRecord{ID: "missing"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("CompleteTransfer(missing) error = %v, want ErrNotFound", err)
	}

	rec := &domain.TransferRecord{ID: "dup", URL: "u", DestPath: "d"}
	if err := store.CreateTransfer(rec); err != nil {
		t.Fatalf("CreateTransfer() error = %v", err)
	}
	if err := store.CreateTransfer(&domain.TransferRecord{ID: "dup", URL: "u", DestPath: "d"}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("CreateTransfer(dup) error = %v, want ErrAlreadyExists", err)
	}
}

func TestStore_ListAndStats(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		rec := &domain.TransferRecord{ID: id, URL: "u/" + id, DestPath: "/d/" + id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.CreateTransfer(rec); err != nil {
			t.Fatalf("CreateTransfer(%s) error = %v", id, err)
		}
		switch id {
		case "a":
			rec.MarkCompleted(&domain.TransferResult{BytesWritten: 100, Strategy: domain.StrategySingleStream, Segments: 1})
			store.CompleteTransfer(rec)
		case "b":
			rec.MarkFailed(errors.New("boom"))
			store.FailTransfer(rec)
		}
	}

	list, err := store.ListTransfers(2)
	if err != nil {
		t.Fatalf("ListTransfers() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "b" {
		ids := make([]string, len(list))
		for i, r := range list {
			ids[i] = r.ID
		}
		t.Errorf("ListTransfers(2) = %v, want [c b]", ids)
	}

	stats, err := store.GetHistoryStats()
	if err != nil {
		t.Fatalf("GetHistoryStats() error = %v", err)
	}
	want := domain.HistoryStats{CompletedCount: 1, FailedCount: 1, RunningCount: 1, TotalBytes: 100}
	if *stats != want {
		t.Errorf("GetHistoryStats() = %+v, want %+v", *stats, want)
	}
}

func TestStore_Maintenance(t *testing.T) {
	store := openTestStore(t)
	old := time.Now().Add(-48 * time.Hour)

	stale := &domain.TransferRecord{ID: "stale", URL: "u", DestPath: "/d/stale", CreatedAt: old}
	done := &domain.TransferRecord{ID: "done", URL: "u", DestPath: "/d/done", CreatedAt: old}
	fresh := &domain.TransferRecord{ID: "fresh", URL: "u", DestPath: "/d/fresh"}
	for _, rec := range []*domain.TransferRecord{stale, done, fresh} {
		if err := store.CreateTransfer(rec); err != nil {
			t.Fatalf("CreateTransfer(%s) error = %v", rec.ID, err)
		}
	}
	done.MarkCompleted(&domain.TransferResult{BytesWritten: 1})
	store.CompleteTransfer(done)

	cutoff := time.Now().Add(-time.Hour)
	n, err := store.FailStaleTransfers(cutoff)
	if err != nil || n != 1 {
		t.Fatalf("FailStaleTransfers() = (%d, %v), want 1", n, err)
	}
	got, _ := store.GetTransfer("stale")
	if got.Status != domain.TransferStatusFailed || got.LastError != "abandoned" {
		t.Errorf("stale record = %s/%q", got.Status, got.LastError)
	}
	if got, _ := store.GetTransfer("fresh"); got.Status != domain.TransferStatusRunning {
		t.Errorf("fresh record status = %s, want running", got.Status)
	}

	n, err = store.DeleteTransfersBefore(cutoff)
	if err != nil || n != 2 {
		t.Fatalf("DeleteTransfersBefore() = (%d, %v), want 2", n, err)
	}
	if _, err := store.GetTransfer("done"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetTransfer(done) error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetTransfer("fresh"); err != nil {
		t.Errorf("fresh record should remain: %v", err)
	}
}
