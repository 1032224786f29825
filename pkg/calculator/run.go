package calculator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"retail-analytics/pkg/database"
	"retail-analytics/pkg/export"
	"retail-analytics/pkg/models"
	"retail-analytics/pkg/predicate"
)

var (
	// ErrMissingInput means the store is unreachable or holds no lines. Nothing runs.
	ErrMissingInput = errors.New("missing input")
	// ErrQueryFailure wraps the failure of a single report; the other reports still run.
	ErrQueryFailure = errors.New("query failure")
)

// Artifact is an exported report.
type Artifact struct {
	Name     string
	Location string
	Rows     int
}

// Failure is a report that could not be produced.
type Failure struct {
	Name string
	Err  error
}

// Summary is the outcome of one batch, in registry order.
type Summary struct {
	RunID    string
	Produced []Artifact
	Failures []Failure
	Skipped  []string // empty results, nothing exported
}

var tracer = otel.Tracer("retail-analytics/calculator")

type outcome struct {
	index    int
	artifact *Artifact
	failure  *Failure
	skipped  string
}

// Run executes the selected reports against the store and hands every
// non-empty table to the sink.
func Run(ctx context.Context, store database.Store, sink export.Sink, cfg models.Config) (Summary, error) {
	cfg = withDefaults(cfg)
	sum := Summary{RunID: uuid.NewString()}
	if err := ctx.Err(); err != nil {
		return sum, err
	}

	n, err := store.Count(ctx)
	if err != nil {
		return sum, fmt.Errorf("%w: count lines: %v", ErrMissingInput, err)
	}
	if n == 0 {
		return sum, fmt.Errorf("%w: store holds no transaction lines", ErrMissingInput)
	}

	reports, err := selectReports(cfg.Reports)
	if err != nil {
		return sum, err
	}
	log.Printf("[INFO] run %s: %d lines, %d reports", sum.RunID, n, len(reports))

	if cfg.AsOf.IsZero() && needsAsOf(reports) {
		all, err := store.Scan(ctx, database.Filter{CancelPrefix: cfg.CancelPrefix})
		if err != nil {
			return sum, fmt.Errorf("%w: resolve as_of: %v", ErrMissingInput, err)
		}
		if latest, ok := latestTimestamp(all); ok {
			cfg.AsOf = latest
			log.Printf("[INFO] as_of defaulted to latest invoice %s", latest.Format(models.TimestampLayout))
		}
	}

	preds, compileErrs := compileFilters(reports, cfg.ReportFilters)

	var bar *progressbar.ProgressBar
	if cfg.ShowProgress {
		bar = progressbar.Default(int64(len(reports)), "reports")
	}

	var (
		mu       sync.Mutex
		outcomes = make([]outcome, 0, len(reports))
	)
	record := func(o outcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	runOne := func(ctx context.Context, i int, r Report) {
		if err, bad := compileErrs[r.Name]; bad {
			record(outcome{index: i, failure: &Failure{Name: r.Name, Err: fmt.Errorf("%w: %s: filter: %v", ErrQueryFailure, r.Description, err)}})
			return
		}
		record(execute(ctx, i, r, preds[r.Name], store, sink, cfg, sum.RunID))
	}

	if cfg.Workers <= 1 {
		for i, r := range reports {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			runOne(ctx, i, r)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Workers)
		for i, r := range reports {
			g.Go(func() error {
				runOne(gctx, i, r)
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return sum, err
		}
	}

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].index < outcomes[j].index })
	for _, o := range outcomes {
		switch {
		case o.failure != nil:
			sum.Failures = append(sum.Failures, *o.failure)
		case o.artifact != nil:
			sum.Produced = append(sum.Produced, *o.artifact)
		default:
			sum.Skipped = append(sum.Skipped, o.skipped)
		}
	}
	log.Printf("[INFO] run %s done: produced=%d skipped=%d failed=%d",
		sum.RunID, len(sum.Produced), len(sum.Skipped), len(sum.Failures))
	return sum, nil
}

// execute scans, builds and exports one report. Panics in a generator become a failure.
func execute(ctx context.Context, i int, r Report, pred *predicate.Predicate, store database.Store, sink export.Sink, cfg models.Config, runID string) (o outcome) {
	ctx, span := tracer.Start(ctx, "report."+r.Name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("run.id", runID), attribute.String("report.name", r.Name)),
	)
	start := time.Now()
	o.index = i
	defer func() {
		if rec := recover(); rec != nil {
			o = outcome{index: i, failure: &Failure{Name: r.Name, Err: fmt.Errorf("%w: %s: panic: %v", ErrQueryFailure, r.Description, rec)}}
		}
		if o.failure != nil {
			span.RecordError(o.failure.Err)
			span.SetStatus(codes.Error, o.failure.Err.Error())
			log.Printf("[INFO] %s failed: %v", r.Name, o.failure.Err)
		}
		span.End()
		if cfg.Verbose {
			log.Printf("[DEBUG] %s finished in %s", r.Name, time.Since(start))
		}
	}()
	fail := func(stage string, err error) outcome {
		return outcome{index: i, failure: &Failure{Name: r.Name, Err: fmt.Errorf("%w: %s: %s: %v", ErrQueryFailure, r.Description, stage, err)}}
	}

	scope := r.Scope
	scope.CancelPrefix = cfg.CancelPrefix
	if pred != nil {
		scope.Predicate = pred.Match
	}
	lines, err := store.Scan(ctx, scope)
	if err != nil {
		return fail("scan", err)
	}
	if pred != nil {
		if err := pred.Err(); err != nil {
			return fail("filter", err)
		}
	}
	span.SetAttributes(attribute.Int("report.lines", len(lines)))
	if len(lines) == 0 {
		o.skipped = r.Name
		return o
	}

	t, err := r.Build(lines, cfg)
	if err != nil {
		return fail("build", err)
	}
	if t.Empty() {
		o.skipped = r.Name
		return o
	}
	t.Name, t.Description = r.Name, r.Description

	loc, err := sink.Export(ctx, t)
	if err != nil {
		return fail("export", err)
	}
	o.artifact = &Artifact{Name: r.Name, Location: loc, Rows: len(t.Rows)}
	if cfg.Verbose {
		log.Printf("[DEBUG] %s -> %s (%d rows)", r.Name, loc, len(t.Rows))
	}
	return o
}

func compileFilters(reports []Report, filters map[string]string) (map[string]*predicate.Predicate, map[string]error) {
	preds := make(map[string]*predicate.Predicate)
	errs := make(map[string]error)
	if len(filters) == 0 {
		return preds, errs
	}
	c, err := predicate.NewCompiler()
	for _, r := range reports {
		expr, ok := filters[r.Name]
		if !ok || expr == "" {
			continue
		}
		if err != nil {
			errs[r.Name] = err
			continue
		}
		p, cerr := c.Compile(expr)
		if cerr != nil {
			errs[r.Name] = cerr
			continue
		}
		preds[r.Name] = p
	}
	return preds, errs
}

func needsAsOf(reports []Report) bool {
	for _, r := range reports {
		if r.NeedsAsOf {
			return true
		}
	}
	return false
}

func withDefaults(cfg models.Config) models.Config {
	if cfg.CancelPrefix == "" {
		cfg.CancelPrefix = models.DefaultCancelPrefix
	}
	if cfg.TopCountries <= 0 {
		cfg.TopCountries = 20
	}
	if cfg.TopCustomers <= 0 {
		cfg.TopCustomers = 20
	}
	if cfg.TopLifetimeValue <= 0 {
		cfg.TopLifetimeValue = 50
	}
	if cfg.TopProducts <= 0 {
		cfg.TopProducts = 30
	}
	return cfg
}
