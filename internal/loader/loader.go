// Package loader is the only writer of the occupancy store.  It upserts
// normalized rows by natural key and turns per-row store failures into
// quality issues instead of aborting the batch.
package loader

import (
	"context"
	"hash/fnv"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/bus-occupancy-pricing/internal/apperr"
	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
)

// Store is the upsert contract of the persistent store.  Upserts must be
// atomic per call and resolve conflicts on the natural key by keeping
// the latest write.
type Store interface {
	UpsertRoute(ctx context.Context, r model.Route) error
	UpsertOperator(ctx context.Context, op model.Operator) error
	UpsertSchedule(ctx context.Context, s model.Schedule) error
	UpsertOccupancy(ctx context.Context, rec model.SeatOccupancyRecord) error
	AppendIssues(ctx context.Context, issues []model.QualityIssue) error
}

// Row is one normalized record with the batch-scoped id used in issues.
type Row struct {
	RecordID string
	Record   model.SeatOccupancyRecord
}

// ScheduleRow is one validated schedule with its batch-scoped id.
type ScheduleRow struct {
	RecordID string
	Schedule model.Schedule
}

// RouteRow is one validated route with its batch-scoped id.
type RouteRow struct {
	RecordID string
	Route    model.Route
}

// OperatorRow is one validated operator with its batch-scoped id.
type OperatorRow struct {
	RecordID string
	Operator model.Operator
}

// Result summarizes one Load call.  Issues holds a load_failure issue per
// failed row in input order; Errors holds the matching LoadErrors.
type Result struct {
	Attempted int
	Loaded    int
	Failed    int
	Issues    []model.QualityIssue
	Errors    []error
}

const stripes = 64

// Loader writes rows to a Store.  Rows sharing a natural key are written
// one after another in input order, also across concurrent Load calls;
// distinct keys are written by up to workers goroutines.
type Loader struct {
	store   Store
	workers int
	log     *zap.Logger
	now     func() time.Time
	locks   [stripes]sync.Mutex
}

// New creates a loader.  workers below 1 means 1.
func New(store Store, workers int, log *zap.Logger) *Loader {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{store: store, workers: workers, log: log, now: time.Now}
}

type failure struct {
	index int
	issue model.QualityIssue
	err   error
}

// Load upserts rows.  A rejected row yields a load_failure issue and the
// remaining rows proceed.  The returned error is non-nil only when ctx
// ends before every row was attempted.
func (l *Loader) Load(ctx context.Context, rows []Row) (Result, error) {
	res, err := l.upsertAll(ctx, len(rows),
		func(i int) (string, string) { return rows[i].Record.Key().String(), rows[i].RecordID },
		func(ctx context.Context, i int) error { return l.store.UpsertOccupancy(ctx, rows[i].Record) })
	if err != nil {
		return res, err
	}
	l.log.Debug("occupancy rows loaded",
		zap.Int("attempted", res.Attempted), zap.Int("loaded", res.Loaded), zap.Int("failed", res.Failed))
	return res, nil
}

// LoadSchedules upserts schedules with the same failure policy as Load.
// Schedules are keyed by id.
func (l *Loader) LoadSchedules(ctx context.Context, rows []ScheduleRow) (Result, error) {
	return l.upsertAll(ctx, len(rows),
		func(i int) (string, string) {
			return "schedule/" + strconv.FormatInt(rows[i].Schedule.ID, 10), rows[i].RecordID
		},
		func(ctx context.Context, i int) error { return l.store.UpsertSchedule(ctx, rows[i].Schedule) })
}

// LoadRoutes upserts route reference rows.  Schedules reference routes,
// so callers load them first.
func (l *Loader) LoadRoutes(ctx context.Context, rows []RouteRow) (Result, error) {
	return l.upsertAll(ctx, len(rows),
		func(i int) (string, string) {
			return "route/" + strconv.FormatInt(rows[i].Route.ID, 10), rows[i].RecordID
		},
		func(ctx context.Context, i int) error { return l.store.UpsertRoute(ctx, rows[i].Route) })
}

// LoadOperators upserts operator reference rows.
func (l *Loader) LoadOperators(ctx context.Context, rows []OperatorRow) (Result, error) {
	return l.upsertAll(ctx, len(rows),
		func(i int) (string, string) {
			return "operator/" + strconv.FormatInt(rows[i].Operator.ID, 10), rows[i].RecordID
		},
		func(ctx context.Context, i int) error { return l.store.UpsertOperator(ctx, rows[i].Operator) })
}

// upsertAll writes n rows.  ident returns the lock key and the record id
// of row i.  Rows sharing a key keep their input order.
func (l *Loader) upsertAll(ctx context.Context, n int, ident func(i int) (key, recordID string), write func(ctx context.Context, i int) error) (Result, error) {
	groups := make(map[string][]int)
	var order []string
	for i := 0; i < n; i++ {
		k, _ := ident(i)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	var (
		mu       sync.Mutex
		failures []failure
		loaded   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for _, key := range order {
		idx := groups[key]
		g.Go(func() error {
			lock := l.lock(key)
			lock.Lock()
			defer lock.Unlock()
			for _, i := range idx {
				if err := gctx.Err(); err != nil {
					return err
				}
				err := write(gctx, i)
				mu.Lock()
				if err != nil {
					_, recordID := ident(i)
					failures = append(failures, l.fail(i, recordID, key, err))
				} else {
					loaded++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()
	return l.result(n, loaded, failures), err
}

// RecordIssues appends issues to the quality log, stamping DetectedAt
// where it is unset.  The input slice is not modified.
func (l *Loader) RecordIssues(ctx context.Context, issues []model.QualityIssue) error {
	if len(issues) == 0 {
		return nil
	}
	now := l.now().UTC()
	stamped := make([]model.QualityIssue, len(issues))
	copy(stamped, issues)
	for i := range stamped {
		if stamped[i].DetectedAt.IsZero() {
			stamped[i].DetectedAt = now
		}
	}
	return l.store.AppendIssues(ctx, stamped)
}

func (l *Loader) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.locks[h.Sum32()%stripes]
}

func (l *Loader) fail(index int, recordID, key string, err error) failure {
	lerr := apperr.LoadError{Key: key, Err: err}
	l.log.Warn("store rejected row", zap.String("record_id", recordID), zap.Error(lerr))
	return failure{
		index: index,
		err:   lerr,
		issue: model.QualityIssue{
			RecordID:    recordID,
			IssueType:   model.IssueLoadFailure,
			Severity:    model.SeverityHigh,
			Description: lerr.Error(),
			ActionTaken: model.ActionSkipped,
			DetectedAt:  l.now().UTC(),
		},
	}
}

func (l *Loader) result(attempted, loaded int, failures []failure) Result {
	sort.Slice(failures, func(i, j int) bool { return failures[i].index < failures[j].index })
	res := Result{Attempted: attempted, Loaded: loaded, Failed: len(failures)}
	for _, f := range failures {
		res.Issues = append(res.Issues, f.issue)
		res.Errors = append(res.Errors, f.err)
	}
	return res
}
