package harvest

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"fleettrack-harvest/internal/blob"
	"fleettrack-harvest/internal/tracking/application"
	tracking "fleettrack-harvest/internal/tracking/domain"
)

type fakeStore struct {
	objects  []blob.Object
	blobs    map[string][]byte
	fetchErr error
	listErr  error

	listCalls []string
}

func (f *fakeStore) List(ctx context.Context, prefix, startAfter string, max int) ([]blob.Object, error) {
	f.listCalls = append(f.listCalls, startAfter)
	if f.listErr != nil {
		return nil, f.listErr
	}
	sorted := append([]blob.Object(nil), f.objects...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	var result []blob.Object
	for _, object := range sorted {
		if startAfter != "" && object.Key <= startAfter {
			continue
		}
		result = append(result, object)
		if len(result) >= max {
			break
		}
	}
	return result, nil
}

func (f *fakeStore) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	content, ok := f.blobs[locator]
	if !ok {
		return nil, errors.New("not found")
	}
	return content, nil
}

type fakeReconciler struct {
	calls []string
	err   error
}

func (f *fakeReconciler) Reconcile(ctx context.Context, reading tracking.Reading, provenance string) (application.Result, error) {
	f.calls = append(f.calls, provenance)
	if f.err != nil {
		return application.Result{}, f.err
	}
	return application.Result{Outcome: application.OutcomeUpdated}, nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func testConfig() Config {
	return Config{Bucket: "telemetry", Threshold: 24 * time.Hour, BatchSize: 100}
}

func validBlob(vehicleID, timestamp string) []byte {
	return []byte(`{
		"vehicleID": "` + vehicleID + `",
		"vehicleRego": "1ABC123",
		"GPS": {"coordinates": [115.857, -31.953]},
		"readings": {"vehicleHeading": 180, "vehicleSpeed": "60", "vehicleAltitude": 12},
		"timestamp": "` + timestamp + `"
	}`)
}

func TestScanner_ProcessesFreshBlobs(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		objects: []blob.Object{
			{Key: "a.json", LastModified: now.Add(-time.Hour)},
			{Key: "b.json", LastModified: now.Add(-time.Minute)},
		},
		blobs: map[string][]byte{
			"a.json": validBlob("41", "10/03/2026 11:00:00 AM"),
			"b.json": validBlob("42", "10/03/2026 11:59:00 AM"),
		},
	}
	reconciler := &fakeReconciler{}
	scanner, err := NewScanner(store, reconciler, fixedClock{now: now}, time.UTC, testConfig(), nil)
	if err != nil {
		t.Fatalf("new scanner: %v", err)
	}

	processed, err := scanner.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected 2 processed, got %d", processed)
	}
	if len(reconciler.calls) != 2 {
		t.Fatalf("expected 2 reconcile calls, got %d", len(reconciler.calls))
	}
	if reconciler.calls[0] != "a.json" || reconciler.calls[1] != "b.json" {
		t.Fatalf("unexpected provenance order: %v", reconciler.calls)
	}
}

func TestScanner_SkipsStaleBlobs(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		objects: []blob.Object{
			{Key: "old.json", LastModified: now.Add(-48 * time.Hour)},
			{Key: "recent.json", LastModified: now.Add(-time.Minute)},
		},
		blobs: map[string][]byte{
			"recent.json": validBlob("42", "10/03/2026 11:59:00 AM"),
		},
	}
	reconciler := &fakeReconciler{}
	scanner, err := NewScanner(store, reconciler, fixedClock{now: now}, time.UTC, testConfig(), nil)
	if err != nil {
		t.Fatalf("new scanner: %v", err)
	}

	processed, err := scanner.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 processed, got %d", processed)
	}
	if len(reconciler.calls) != 1 || reconciler.calls[0] != "recent.json" {
		t.Fatalf("expected only recent.json reconciled, got %v", reconciler.calls)
	}
}

func TestScanner_MalformedBlobSkippedAndCursorAdvances(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		objects: []blob.Object{
			{Key: "bad.json", LastModified: now.Add(-time.Minute)},
			{Key: "good.json", LastModified: now.Add(-time.Minute)},
		},
		blobs: map[string][]byte{
			"bad.json":  []byte(`{"vehicleID": ""}`),
			"good.json": validBlob("42", "10/03/2026 11:59:00 AM"),
		},
	}
	reconciler := &fakeReconciler{}
	scanner, err := NewScanner(store, reconciler, fixedClock{now: now}, time.UTC, testConfig(), nil)
	if err != nil {
		t.Fatalf("new scanner: %v", err)
	}

	processed, err := scanner.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 processed, got %d", processed)
	}
	if scanner.cursor != "good.json" {
		t.Fatalf("expected cursor good.json, got %s", scanner.cursor)
	}
}

func TestScanner_StoreFailureStopsAndRetains(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		objects: []blob.Object{
			{Key: "a.json", LastModified: now.Add(-time.Minute)},
		},
		blobs: map[string][]byte{
			"a.json": validBlob("42", "10/03/2026 11:59:00 AM"),
		},
	}
	reconciler := &fakeReconciler{err: tracking.NewStoreError("reconcile", errors.New("db down"))}
	scanner, err := NewScanner(store, reconciler, fixedClock{now: now}, time.UTC, testConfig(), nil)
	if err != nil {
		t.Fatalf("new scanner: %v", err)
	}

	_, err = scanner.ScanOnce(context.Background())
	if !errors.Is(err, tracking.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	if scanner.cursor != "" {
		t.Fatalf("expected cursor unchanged, got %s", scanner.cursor)
	}
}

func TestScanner_SkipsFreshBlobWithOldReading(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		objects: []blob.Object{
			{Key: "replayed.json", LastModified: now.Add(-time.Minute)},
			{Key: "recent.json", LastModified: now.Add(-time.Minute)},
		},
		blobs: map[string][]byte{
			"replayed.json": validBlob("41", "08/02/2026 12:00:00 PM"),
			"recent.json":   validBlob("42", "10/03/2026 11:59:00 AM"),
		},
	}
	reconciler := &fakeReconciler{}
	scanner, err := NewScanner(store, reconciler, fixedClock{now: now}, time.UTC, testConfig(), nil)
	if err != nil {
		t.Fatalf("new scanner: %v", err)
	}

	processed, err := scanner.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 processed, got %d", processed)
	}
	if len(reconciler.calls) != 1 || reconciler.calls[0] != "recent.json" {
		t.Fatalf("expected only recent.json reconciled, got %v", reconciler.calls)
	}
	if scanner.cursor != "replayed.json" {
		t.Fatalf("expected cursor past replayed blob, got %s", scanner.cursor)
	}
}

func TestScanner_EmptySweepRewindsCursorForLateKeys(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		objects: []blob.Object{
			{Key: "b.json", LastModified: now.Add(-time.Minute)},
		},
		blobs: map[string][]byte{
			"a.json": validBlob("41", "10/03/2026 11:58:00 AM"),
			"b.json": validBlob("42", "10/03/2026 11:59:00 AM"),
		},
	}
	reconciler := &fakeReconciler{}
	scanner, err := NewScanner(store, reconciler, fixedClock{now: now}, time.UTC, testConfig(), nil)
	if err != nil {
		t.Fatalf("new scanner: %v", err)
	}

	if _, err := scanner.ScanOnce(context.Background()); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if scanner.cursor != "b.json" {
		t.Fatalf("expected cursor b.json, got %s", scanner.cursor)
	}

	// A producer writes a key behind the cursor between sweeps.
	store.objects = append(store.objects, blob.Object{Key: "a.json", LastModified: now.Add(-30 * time.Second)})

	processed, err := scanner.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if processed != 0 {
		t.Fatalf("expected empty sweep, got %d processed", processed)
	}
	if scanner.cursor != "" {
		t.Fatalf("expected rewound cursor, got %s", scanner.cursor)
	}

	if _, err := scanner.ScanOnce(context.Background()); err != nil {
		t.Fatalf("third scan: %v", err)
	}
	if len(reconciler.calls) != 3 || reconciler.calls[1] != "a.json" {
		t.Fatalf("expected late key reconciled after rewind, got %v", reconciler.calls)
	}
}

func TestScanner_ResumesAfterCursor(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		objects: []blob.Object{
			{Key: "a.json", LastModified: now.Add(-time.Minute)},
			{Key: "b.json", LastModified: now.Add(-time.Minute)},
		},
		blobs: map[string][]byte{
			"a.json": validBlob("41", "10/03/2026 11:58:00 AM"),
			"b.json": validBlob("42", "10/03/2026 11:59:00 AM"),
		},
	}
	reconciler := &fakeReconciler{}
	scanner, err := NewScanner(store, reconciler, fixedClock{now: now}, time.UTC, testConfig(), nil)
	if err != nil {
		t.Fatalf("new scanner: %v", err)
	}

	if _, err := scanner.ScanOnce(context.Background()); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if _, err := scanner.ScanOnce(context.Background()); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if len(reconciler.calls) != 2 {
		t.Fatalf("expected no reprocessing, got %d calls", len(reconciler.calls))
	}
	if len(store.listCalls) != 2 || store.listCalls[1] != "b.json" {
		t.Fatalf("expected second list to start after b.json, got %v", store.listCalls)
	}
}
