// Package importer loads the subproject registry export into the record
// store. Each row is normalized and upserted on its own; a bad row is
// counted and logged, and the run moves on.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/miadp/fmrgate/internal/model"
	"github.com/miadp/fmrgate/internal/normalize"
	"github.com/miadp/fmrgate/internal/tabular"
)

var (
	// ErrSourceUnreadable wraps any failure to open or parse the source.
	// It is fatal to the run, unlike row-level failures.
	ErrSourceUnreadable = errors.New("source unreadable")
	// ErrMissingNaturalKey marks a row whose subproject code is absent.
	ErrMissingNaturalKey = errors.New("missing subproject code")
	// ErrStoreWrite marks a row whose upsert was rejected by the store.
	ErrStoreWrite = errors.New("store write failed")
)

// SubprojectStore is the slice of the record store the pipeline writes to.
type SubprojectStore interface {
	UpsertSubproject(ctx context.Context, sp *model.Subproject) error
}

// RowFailure describes one row that could not be imported. Row is the
// 1-based position of the record after the header.
type RowFailure struct {
	Row  int
	Code string
	Err  error
}

// Result summarizes one run. Counters are per run, never cumulative.
type Result struct {
	Total     int // rows read from the source
	Succeeded int // rows created or updated
	Failed    int // rows rejected (missing key or store error)
	Skipped   int // rows never attempted because the run was cancelled
	Failures  []RowFailure
	Duration  time.Duration
}

// Partial reports whether some rows did not make it into the store. It is a
// partial-success signal, not an error.
func (r Result) Partial() bool {
	return r.Failed > 0 || r.Skipped > 0
}

// Pipeline normalizes and upserts subproject rows.
type Pipeline struct {
	store   SubprojectStore
	logger  *slog.Logger
	workers int
	source  tabular.Options
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers sets how many rows may be upserted concurrently. Values
// below 1 mean sequential.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n < 1 {
			n = 1
		}
		p.workers = n
	}
}

// WithSourceOptions sets how ImportFile parses its source.
func WithSourceOptions(opts tabular.Options) Option {
	return func(p *Pipeline) {
		p.source = opts
	}
}

// New creates a Pipeline writing to store.
func New(store SubprojectStore, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:   store,
		logger:  logger,
		workers: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ImportFile reads the whole source at path and then runs every row. An
// unreadable source fails the run with ErrSourceUnreadable before any row
// is touched.
func (p *Pipeline) ImportFile(ctx context.Context, path string) (Result, error) {
	p.logger.Info("starting subproject import", "source", path)

	rows, err := tabular.ReadFile(path, p.source)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	p.logger.Info("source parsed", "rows", len(rows))

	return p.Run(ctx, rows)
}

// Run normalizes and upserts rows. Row failures are counted in the result
// and never abort the run. If ctx ends mid-run, rows not yet started are
// reported as Skipped, in-flight upserts are left to finish or fail at the
// driver, and ctx.Err() is returned alongside the partial result.
func (p *Pipeline) Run(ctx context.Context, rows []tabular.Row) (Result, error) {
	start := time.Now()

	var (
		succeeded atomic.Int64
		failed    atomic.Int64
		skipped   atomic.Int64
		mu        sync.Mutex
		failures  []RowFailure
	)
	fail := func(f RowFailure) {
		failed.Add(1)
		mu.Lock()
		failures = append(failures, f)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(p.workers)

	dispatched := 0
	for _, group := range groupByCode(rows) {
		if ctx.Err() != nil {
			break
		}
		dispatched += len(group)
		g.Go(func() error {
			for _, i := range group {
				if ctx.Err() != nil {
					skipped.Add(1)
					continue
				}
				if err := p.importRow(ctx, i+1, rows[i]); err != nil {
					fail(*err)
					continue
				}
				succeeded.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	sort.Slice(failures, func(i, j int) bool { return failures[i].Row < failures[j].Row })

	res := Result{
		Total:     len(rows),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Skipped:   len(rows) - dispatched + int(skipped.Load()),
		Failures:  failures,
		Duration:  time.Since(start),
	}

	level := slog.LevelInfo
	if res.Partial() {
		level = slog.LevelWarn
	}
	p.logger.Log(ctx, level, "subproject import finished",
		"total", res.Total,
		"created_or_updated", res.Succeeded,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"duration_ms", res.Duration.Milliseconds(),
	)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// importRow handles one row and returns a failure description, or nil on
// success.
func (p *Pipeline) importRow(ctx context.Context, n int, row tabular.Row) *RowFailure {
	code, ok := normalize.Clean(row.Get(ColumnCode))
	if !ok {
		p.logger.Warn("skipping row without subproject code", "row", n)
		return &RowFailure{Row: n, Err: ErrMissingNaturalKey}
	}

	sp := subprojectFromRow(code, row, p.logger)
	if err := p.store.UpsertSubproject(ctx, sp); err != nil {
		p.logger.Error("failed to import subproject", "code", code, "row", n, "error", err)
		return &RowFailure{Row: n, Code: code, Err: fmt.Errorf("%w: %w", ErrStoreWrite, err)}
	}

	p.logger.Debug("imported subproject", "code", code, "row", n)
	return nil
}

// groupByCode returns row indexes grouped by natural key, in order of first
// appearance. Rows sharing a code are written by one worker in file order,
// so the last occurrence wins. Keyless rows each form their own group.
func groupByCode(rows []tabular.Row) [][]int {
	var groups [][]int
	byCode := make(map[string]int)
	for i, row := range rows {
		code, ok := normalize.Clean(row.Get(ColumnCode))
		if !ok {
			groups = append(groups, []int{i})
			continue
		}
		if g, seen := byCode[code]; seen {
			groups[g] = append(groups[g], i)
			continue
		}
		byCode[code] = len(groups)
		groups = append(groups, []int{i})
	}
	return groups
}
