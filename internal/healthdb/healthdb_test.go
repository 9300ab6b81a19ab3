package healthdb_test

import (
	"context"
	"testing"
	"time"

	"shelfaudit/internal/healthdb"
	"shelfaudit/internal/testsupport"
)

func TestGetMissingBook(t *testing.T) {
	store := testsupport.MustOpenHealthDB(t, testsupport.NewConfig(t))

	entry, err := store.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected nil for unscanned book, got %+v", entry)
	}
}

func TestUpsertBatchRoundTrip(t *testing.T) {
	store := testsupport.MustOpenHealthDB(t, testsupport.NewConfig(t))
	ctx := context.Background()
	scanned := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	batch := []healthdb.Entry{
		{
			BookID:              1,
			IsHealthy:           true,
			HasOriginal:         true,
			HasTranslation:      true,
			HasViewable:         true,
			DescriptionLanguage: "ces",
			LastScan:            scanned,
		},
		{
			BookID:              2,
			HasViewable:         true,
			ExtraFormats:        []string{"PDF", "DOCX (wrong language)"},
			DescriptionLanguage: "eng",
			ISBNMissing:         true,
			RecoveredISBN:       "9788074325356",
			LastScan:            scanned.Add(time.Minute),
		},
	}
	if err := store.UpsertBatch(ctx, batch); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	entry, err := store.Get(ctx, 2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry == nil {
		t.Fatal("expected cached entry for book 2")
	}
	if entry.IsHealthy || !entry.HasViewable || !entry.ISBNMissing {
		t.Fatalf("unexpected flags: %+v", entry)
	}
	if len(entry.ExtraFormats) != 2 || entry.ExtraFormats[0] != "PDF" {
		t.Fatalf("unexpected extra formats: %v", entry.ExtraFormats)
	}
	if entry.RecoveredISBN != "9788074325356" {
		t.Fatalf("unexpected recovered ISBN %q", entry.RecoveredISBN)
	}
	if !entry.LastScan.Equal(scanned.Add(time.Minute)) {
		t.Fatalf("unexpected last scan %v", entry.LastScan)
	}
}

func TestUpsertBatchOverwritesVerdict(t *testing.T) {
	store := testsupport.MustOpenHealthDB(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := healthdb.Entry{BookID: 7, ExtraFormats: []string{"PDF"}, LastScan: time.Now()}
	if err := store.UpsertBatch(ctx, []healthdb.Entry{first}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := first
	second.IsHealthy = true
	second.ExtraFormats = nil
	second.LastScan = first.LastScan.Add(time.Hour)
	if err := store.UpsertBatch(ctx, []healthdb.Entry{second}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	entry, err := store.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !entry.IsHealthy {
		t.Fatal("expected verdict to be overwritten")
	}
	if len(entry.ExtraFormats) != 0 {
		t.Fatalf("expected extra formats cleared, got %v", entry.ExtraFormats)
	}
}

func TestAllUnhealthyOrdersByBookID(t *testing.T) {
	store := testsupport.MustOpenHealthDB(t, testsupport.NewConfig(t))
	ctx := context.Background()
	now := time.Now()

	batch := []healthdb.Entry{
		{BookID: 9, LastScan: now},
		{BookID: 3, LastScan: now},
		{BookID: 5, IsHealthy: true, LastScan: now},
	}
	if err := store.UpsertBatch(ctx, batch); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	unhealthy, err := store.AllUnhealthy(ctx)
	if err != nil {
		t.Fatalf("AllUnhealthy: %v", err)
	}
	if len(unhealthy) != 2 || unhealthy[0].BookID != 3 || unhealthy[1].BookID != 9 {
		t.Fatalf("unexpected unhealthy set: %+v", unhealthy)
	}
}

func TestScanTimesAndMax(t *testing.T) {
	store := testsupport.MustOpenHealthDB(t, testsupport.NewConfig(t))
	ctx := context.Background()

	max, err := store.MaxScanTime(ctx)
	if err != nil {
		t.Fatalf("MaxScanTime: %v", err)
	}
	if !max.IsZero() {
		t.Fatalf("expected zero max on empty cache, got %v", max)
	}

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)
	batch := []healthdb.Entry{
		{BookID: 1, LastScan: older},
		{BookID: 2, LastScan: newer},
	}
	if err := store.UpsertBatch(ctx, batch); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	times, err := store.ScanTimes(ctx)
	if err != nil {
		t.Fatalf("ScanTimes: %v", err)
	}
	if len(times) != 2 || !times[1].Equal(older) || !times[2].Equal(newer) {
		t.Fatalf("unexpected scan times: %v", times)
	}

	max, err = store.MaxScanTime(ctx)
	if err != nil {
		t.Fatalf("MaxScanTime: %v", err)
	}
	if !max.Equal(newer) {
		t.Fatalf("MaxScanTime = %v, want %v", max, newer)
	}
}

func TestTimestampsStoredUTC(t *testing.T) {
	store := testsupport.MustOpenHealthDB(t, testsupport.NewConfig(t))
	ctx := context.Background()

	zone := time.FixedZone("CET", 3600)
	local := time.Date(2026, 6, 1, 12, 0, 0, 0, zone)
	if err := store.UpsertBatch(ctx, []healthdb.Entry{{BookID: 1, LastScan: local}}); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	entry, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.LastScan.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", entry.LastScan.Location())
	}
	if !entry.LastScan.Equal(local) {
		t.Fatalf("timestamp changed instant: %v vs %v", entry.LastScan, local)
	}
}

func TestCountsDeleteClear(t *testing.T) {
	store := testsupport.MustOpenHealthDB(t, testsupport.NewConfig(t))
	ctx := context.Background()
	now := time.Now()

	batch := []healthdb.Entry{
		{BookID: 1, IsHealthy: true, LastScan: now},
		{BookID: 2, LastScan: now},
		{BookID: 3, IsHealthy: true, LastScan: now},
	}
	if err := store.UpsertBatch(ctx, batch); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	healthy, total, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if healthy != 2 || total != 3 {
		t.Fatalf("Counts = %d/%d, want 2/3", healthy, total)
	}

	if err := store.Delete(ctx, 2); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, 99); err != nil {
		t.Fatalf("Delete of missing row: %v", err)
	}
	_, total, err = store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts after delete: %v", err)
	}
	if total != 2 {
		t.Fatalf("total = %d after delete, want 2", total)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	_, total, err = store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts after clear: %v", err)
	}
	if total != 0 {
		t.Fatalf("total = %d after clear, want 0", total)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	first, err := healthdb.Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.UpsertBatch(ctx, []healthdb.Entry{{BookID: 1, LastScan: time.Now()}}); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := testsupport.MustOpenHealthDB(t, cfg)
	entry, err := second.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry to survive reopen")
	}
}
