package etl

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/bus-occupancy-pricing/internal/config"
	"github.com/iliyamo/bus-occupancy-pricing/internal/loader"
	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
	"github.com/iliyamo/bus-occupancy-pricing/internal/quality"
	"github.com/iliyamo/bus-occupancy-pricing/internal/queue"
)

// Publisher announces processed batches.  Publishing is best effort.
type Publisher interface {
	Publish(ctx context.Context, event queue.BatchProcessedEvent) error
}

// Pipeline processes one batch end to end: validate and normalize in
// parallel, then report and load the normalized stream concurrently.
// It holds no state between batches; processing the same batch twice
// leaves the store as processing it once.
type Pipeline struct {
	validator   *Validator
	normalizer  *Normalizer
	loader      *loader.Loader
	publisher   Publisher
	sampleLimit int
	workers     int
	log         *zap.Logger
	now         func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithPublisher sets the processed-batch publisher.
func WithPublisher(p Publisher) Option { return func(pl *Pipeline) { pl.publisher = p } }

// WithWorkers bounds the validation fan-out.
func WithWorkers(n int) Option {
	return func(pl *Pipeline) {
		if n > 0 {
			pl.workers = n
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) Option { return func(pl *Pipeline) { pl.log = l } }

// NewPipeline wires the stages for the given thresholds.
func NewPipeline(t config.Thresholds, ld *loader.Loader, opts ...Option) *Pipeline {
	p := &Pipeline{
		validator:   NewValidator(t.Validation),
		normalizer:  NewNormalizer(t.Normalization),
		loader:      ld,
		sampleLimit: t.Report.SampleLimit,
		workers:     8,
		log:         zap.NewNop(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Result is everything a caller learns about one processed batch.
type Result struct {
	BatchID   string
	Outcomes  []model.Outcome
	Report    quality.Report
	Load      loader.Result
	Routes    loader.Result
	Operators loader.Result
	Schedules loader.Result
}

// ProcessRaw decodes r and processes it.  A malformed container is
// returned as a BatchFormatError before anything is loaded.
func (p *Pipeline) ProcessRaw(ctx context.Context, r io.Reader) (Result, error) {
	b, err := DecodeBatch(r)
	if err != nil {
		return Result{}, err
	}
	return p.Process(ctx, b)
}

// Process runs one decoded batch.  Per-record problems end up in the
// report; the error is non-nil only when ctx ends.
func (p *Pipeline) Process(ctx context.Context, b Batch) (Result, error) {
	log := p.log.With(zap.String("batch_id", b.ID))
	start := p.now()

	outcomes, err := p.clean(ctx, b)
	if err != nil {
		return Result{}, err
	}

	res := Result{BatchID: b.ID, Outcomes: outcomes}
	refIssues, err := p.loadReference(ctx, b, &res)
	if err != nil {
		return Result{}, err
	}

	var rows []loader.Row
	for _, o := range outcomes {
		if o.Accepted() {
			rows = append(rows, loader.Row{RecordID: o.RecordID, Record: o.Record})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res.Report = quality.Build(b.ID, outcomes, p.sampleLimit)
		return nil
	})
	if p.loader != nil {
		g.Go(func() error {
			var err error
			res.Load, err = p.loader.Load(gctx, rows)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res.Report.AddLoadIssues(refIssues)
	res.Report.AddLoadIssues(res.Load.Issues)

	if p.loader != nil {
		if err := p.loader.RecordIssues(ctx, allIssues(outcomes, refIssues, res.Load.Issues)); err != nil {
			log.Error("persist quality issues failed", zap.Error(err))
		}
	}

	log.Info("batch processed",
		zap.Int("submitted", res.Report.Total),
		zap.Int("valid", res.Report.Valid),
		zap.Int("repaired", res.Report.Repaired),
		zap.Int("dropped", res.Report.Dropped),
		zap.Int("loaded", res.Load.Loaded),
		zap.Int("load_failed", res.Load.Failed),
		zap.Float64("quality_score", res.Report.QualityScore),
		zap.Duration("took", p.now().Sub(start)),
	)

	if p.publisher != nil {
		ev := queue.BatchProcessedEvent{
			BatchID:     b.ID,
			Report:      res.Report,
			Loaded:      res.Load.Loaded,
			Failed:      res.Load.Failed,
			ProcessedAt: p.now().UTC(),
		}
		if err := p.publisher.Publish(ctx, ev); err != nil {
			log.Warn("publish batch report failed", zap.Error(err))
		}
	}
	return res, nil
}

// loadReference validates and loads routes, operators and schedules, in
// that order, since each schedule references a route and an operator.
// The returned issues cover both rejected rows and store failures.
func (p *Pipeline) loadReference(ctx context.Context, b Batch, res *Result) ([]model.QualityIssue, error) {
	var issues []model.QualityIssue
	var routes []loader.RouteRow
	for i, raw := range b.Routes {
		r, is, ok := ValidateRoute(b.RouteID(i), raw)
		if !ok {
			issues = append(issues, is...)
			continue
		}
		routes = append(routes, loader.RouteRow{RecordID: b.RouteID(i), Route: r})
	}
	var operators []loader.OperatorRow
	for i, raw := range b.Operators {
		op, is, ok := ValidateOperator(b.OperatorID(i), raw)
		if !ok {
			issues = append(issues, is...)
			continue
		}
		operators = append(operators, loader.OperatorRow{RecordID: b.OperatorID(i), Operator: op})
	}
	var schedules []loader.ScheduleRow
	for i, raw := range b.Schedules {
		s, is, ok := ValidateSchedule(b.ScheduleID(i), raw)
		if !ok {
			issues = append(issues, is...)
			continue
		}
		schedules = append(schedules, loader.ScheduleRow{RecordID: b.ScheduleID(i), Schedule: s})
	}
	if p.loader == nil {
		return issues, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		res.Routes, err = p.loader.LoadRoutes(gctx, routes)
		return err
	})
	g.Go(func() error {
		var err error
		res.Operators, err = p.loader.LoadOperators(gctx, operators)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var err error
	if res.Schedules, err = p.loader.LoadSchedules(ctx, schedules); err != nil {
		return nil, err
	}
	issues = append(issues, res.Routes.Issues...)
	issues = append(issues, res.Operators.Issues...)
	issues = append(issues, res.Schedules.Issues...)
	return issues, nil
}

// clean validates and normalizes every record in parallel.  Outcomes are
// stored by index so the result keeps input order.
func (p *Pipeline) clean(ctx context.Context, b Batch) ([]model.Outcome, error) {
	outcomes := make([]model.Outcome, len(b.Records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, raw := range b.Records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = p.normalizer.Normalize(p.validator.Validate(b.RecordID(i), raw))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func allIssues(outcomes []model.Outcome, extra ...[]model.QualityIssue) []model.QualityIssue {
	var all []model.QualityIssue
	for _, o := range outcomes {
		all = append(all, o.Issues...)
	}
	for _, e := range extra {
		all = append(all, e...)
	}
	return all
}
