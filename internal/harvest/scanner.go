package harvest

import (
	"context"
	"errors"
	"log"
	"time"

	"fleettrack-harvest/internal/blob"
	"fleettrack-harvest/internal/observability/metrics"
	"fleettrack-harvest/internal/tracking/application"
	tracking "fleettrack-harvest/internal/tracking/domain"
	"fleettrack-harvest/internal/tracking/interfaces/eventgrid"
)

// Reconciler applies one decoded reading.
type Reconciler interface {
	Reconcile(ctx context.Context, reading tracking.Reading, provenance string) (application.Result, error)
}

// Scanner sweeps the blob store for telemetry the notification path missed.
// It keeps a lexical cursor over the key space, assuming producers write
// keys in ascending order within a sweep window; the cursor rewinds to the
// start of the prefix whenever a sweep comes back empty, so late arrivals
// behind it are only deferred, not lost. Objects older than the threshold,
// by storage timestamp or by the telemetry timestamp inside the blob, are
// skipped without processing.
type Scanner struct {
	store      blob.Store
	reconciler Reconciler
	clock      tracking.Clock
	loc        *time.Location
	prefix     string
	threshold  time.Duration
	batchSize  int
	cursor     string
	logger     *log.Logger
}

// NewScanner constructs a Scanner.
func NewScanner(store blob.Store, reconciler Reconciler, clock tracking.Clock, loc *time.Location, cfg Config, logger *log.Logger) (*Scanner, error) {
	if store == nil {
		return nil, errors.New("harvest scanner: nil store")
	}
	if reconciler == nil {
		return nil, errors.New("harvest scanner: nil reconciler")
	}
	if clock == nil {
		return nil, errors.New("harvest scanner: nil clock")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scanner{
		store:      store,
		reconciler: reconciler,
		clock:      clock,
		loc:        loc,
		prefix:     cfg.Prefix,
		threshold:  cfg.Threshold,
		batchSize:  cfg.BatchSize,
		logger:     logger,
	}, nil
}

// ScanOnce lists the next batch of blobs and processes the fresh ones.
// It returns the number of blobs processed. The cursor only advances past
// a blob once it has been processed or deliberately skipped, so a store
// outage replays the same blob on the next sweep.
func (s *Scanner) ScanOnce(ctx context.Context) (int, error) {
	start := time.Now()
	processed, err := s.scan(ctx)
	metrics.ObserveHarvestScan(err, time.Since(start))
	return processed, err
}

func (s *Scanner) scan(ctx context.Context) (int, error) {
	objects, err := s.store.List(ctx, s.prefix, s.cursor, s.batchSize)
	if err != nil {
		return 0, tracking.NewStoreError("harvest list", err)
	}
	if len(objects) == 0 {
		// Rewind so keys uploaded behind the cursor are picked up on the
		// next sweep. The staleness cutoff bounds how far back that re-scan
		// reaches.
		s.cursor = ""
		return 0, nil
	}

	cutoff := s.clock.Now().Add(-s.threshold)
	processed := 0
	for _, object := range objects {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if object.LastModified.Before(cutoff) {
			s.cursor = object.Key
			continue
		}
		ok, err := s.processBlob(ctx, object.Key, cutoff)
		if err != nil {
			if errors.Is(err, tracking.ErrStoreUnavailable) {
				return processed, err
			}
			s.logger.Printf("harvest skip blob: key=%s err=%v", object.Key, err)
			s.cursor = object.Key
			continue
		}
		s.cursor = object.Key
		if ok {
			processed++
		}
	}
	return processed, nil
}

// processBlob fetches, decodes and reconciles one blob. It reports false
// without error when the blob's telemetry timestamp is older than the
// cutoff; a fresh upload of an old reading is discarded the same as a
// stale blob.
func (s *Scanner) processBlob(ctx context.Context, key string, cutoff time.Time) (bool, error) {
	fetchStart := time.Now()
	content, err := s.store.Fetch(ctx, key)
	metrics.ObserveBlobFetch(time.Since(fetchStart))
	if err != nil {
		return false, tracking.NewStoreError("harvest fetch", err)
	}

	reading, err := eventgrid.ParseReading(content, s.loc)
	if err != nil {
		return false, err
	}
	if reading.Seen.Before(cutoff) {
		s.logger.Printf("harvest skip blob: key=%s reading older than threshold", key)
		return false, nil
	}
	if _, err := s.reconciler.Reconcile(ctx, reading, key); err != nil {
		return false, err
	}
	return true, nil
}
