package feed

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"wisefido-records/internal/provider"
	"wisefido-records/internal/store"

	"go.uber.org/zap"
)

// Fetcher reads rows of an upstream resource path.
type Fetcher interface {
	Fetch(ctx context.Context, path string, params url.Values) ([]store.Values, error)
}

// Writer is the part of the resource router the importer writes through.
type Writer interface {
	Query(ctx context.Context, path string, q provider.Query) (*store.Cursor, error)
	Insert(ctx context.Context, path string, values store.Values) (provider.ResourceID, error)
	BulkInsert(ctx context.Context, path string, rows []store.Values) (int, error)
}

// Reference paths copied wholesale on a full sync, parents before children.
var referencePaths = []string{
	provider.PathLocations,
	provider.PathLocationNames,
	provider.PathConcepts,
	provider.PathConceptNames,
	provider.PathCharts,
	provider.PathUsers,
	provider.PathPatients,
}

// recordedOverlap is re-read on every incremental sync so rows stamped just
// before the previous sync but committed after it are still fetched.
const recordedOverlap = time.Minute

// Report counts the rows written per path. ObsTime is the latest upstream
// recorded_time seen, the cursor of the next incremental sync.
type Report struct {
	Full    bool           `json:"full"`
	Rows    map[string]int `json:"rows"`
	ObsTime int64          `json:"obs_sync_time"`
}

// Importer copies upstream records into the local store.
type Importer struct {
	source Fetcher
	sink   Writer
	logger *zap.Logger
	now    func() time.Time
}

func NewImporter(source Fetcher, sink Writer, logger *zap.Logger) *Importer {
	return &Importer{source: source, sink: sink, logger: logger, now: time.Now}
}

// Sync imports reference data when full is set, then observations the
// upstream recorded since the last sync, whatever their encounter time.
// Each path is written in one transaction.
func (im *Importer) Sync(ctx context.Context, full bool) (*Report, error) {
	state, err := im.syncState(ctx)
	if err != nil {
		return nil, err
	}
	report := &Report{Full: full, Rows: map[string]int{}}
	started := im.now().Unix()

	if full {
		for _, path := range referencePaths {
			n, err := im.copyPath(ctx, path, nil)
			if err != nil {
				return report, err
			}
			report.Rows[path] = n
		}
	}

	var params url.Values
	if since := state.Int64("obs_sync_time"); !full && since > 0 {
		params = url.Values{"min_recorded_time": {strconv.FormatInt(since-int64(recordedOverlap/time.Second), 10)}}
	}
	rows, err := im.source.Fetch(ctx, provider.PathObservations, params)
	if err != nil {
		return report, err
	}
	n, err := im.sink.BulkInsert(ctx, provider.PathObservations, rows)
	if err != nil {
		return report, fmt.Errorf("failed to import observations: %w", err)
	}
	report.Rows[provider.PathObservations] = n

	report.ObsTime = state.Int64("obs_sync_time")
	for _, r := range rows {
		if t := store.Row(r).Int64("recorded_time"); t > report.ObsTime {
			report.ObsTime = t
		}
	}

	misc := store.Values{"obs_sync_time": report.ObsTime}
	if full {
		misc["full_sync_start_time"] = started
		misc["full_sync_end_time"] = im.now().Unix()
	}
	if _, err := im.sink.Insert(ctx, provider.PathMisc, misc); err != nil {
		return report, fmt.Errorf("failed to record sync time: %w", err)
	}

	im.logger.Info("Feed sync finished",
		zap.Bool("full", full),
		zap.Int("observations", n),
		zap.Int64("obs_sync_time", report.ObsTime))
	return report, nil
}

func (im *Importer) copyPath(ctx context.Context, path string, params url.Values) (int, error) {
	rows, err := im.source.Fetch(ctx, path, params)
	if err != nil {
		return 0, err
	}
	n, err := im.sink.BulkInsert(ctx, path, rows)
	if err != nil {
		return 0, fmt.Errorf("failed to import %s: %w", path, err)
	}
	im.logger.Debug("Imported resource", zap.String("path", path), zap.Int("rows", n))
	return n, nil
}

func (im *Importer) syncState(ctx context.Context) (store.Row, error) {
	cur, err := im.sink.Query(ctx, provider.PathMisc, provider.Query{})
	if err != nil {
		return nil, fmt.Errorf("failed to read sync state: %w", err)
	}
	rows, err := cur.All()
	if err != nil {
		return nil, fmt.Errorf("failed to read sync state: %w", err)
	}
	if len(rows) == 0 {
		return store.Row{}, nil
	}
	return rows[0], nil
}
