package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hringest/internal/errs"
	"hringest/internal/logging"
	"hringest/internal/records"
)

// Strategy names the loading path a Loader was built with.
type Strategy string

const (
	StrategyBulkCopy Strategy = "bulk_copy"
	StrategyRowWise  Strategy = "row_wise"
)

// DefaultBatchRows bounds a row-wise statement when no limit is configured.
const DefaultBatchRows = 1000

// LoaderOptions configures NewLoader.
type LoaderOptions struct {
	// PreferBulkCopy selects bulk copy on backends that support both paths.
	PreferBulkCopy bool
	// MaxBatchRows bounds the rows per row-wise INSERT statement.
	MaxBatchRows int
	Logger       *zap.Logger
}

// LoadResult reports one Load call. Skipped counts only rows the loader
// itself dropped.
type LoadResult struct {
	// Written counts the rows handed to the backend before upsert collapses
	// duplicate ids, so a batch repeating an id reports each occurrence.
	Written int64
	Skipped int
}

// Loader writes validated records with the strategy chosen at construction.
type Loader struct {
	strategy  Strategy
	bulk      BulkCopier
	rows      RowWriter
	batchRows int
	log       *zap.Logger
}

// NewLoader picks the loading strategy for repo. Bulk copy is used when
// preferred and available, or when it is the only capability.
func NewLoader(repo Repository, opts LoaderOptions) (*Loader, error) {
	bc, canBulk := repo.(BulkCopier)
	rw, canRows := repo.(RowWriter)

	l := &Loader{
		batchRows: opts.MaxBatchRows,
		log:       logging.OrNop(opts.Logger).Named("loader"),
	}
	if l.batchRows <= 0 {
		l.batchRows = DefaultBatchRows
	}

	switch {
	case canBulk && (opts.PreferBulkCopy || !canRows):
		l.strategy, l.bulk = StrategyBulkCopy, bc
	case canRows:
		l.strategy, l.rows = StrategyRowWise, rw
	default:
		return nil, errs.Configf("storage backend %q supports neither bulk copy nor row-wise writes", repo.Kind())
	}
	return l, nil
}

// Strategy reports the chosen strategy.
func (l *Loader) Strategy() Strategy { return l.strategy }

// Load writes recs (all of one kind) in a single transaction.
//
// On the bulk-copy path, records with a null in a NOT NULL column are
// dropped and counted when skipInvalid is set; otherwise the batch is
// rejected before any copy starts. Upserts collapse duplicate keys, keeping
// the last occurrence. Backend failures are returned as BulkLoadError.
func (l *Loader) Load(ctx context.Context, kind records.Kind, recs []records.Record, mode Mode, skipInvalid bool) (LoadResult, error) {
	var res LoadResult
	if len(recs) == 0 {
		return res, nil
	}
	if mode != ModeInsert && mode != ModeUpsert {
		return res, errs.Configf("invalid mode %q: use insert or upsert", mode)
	}

	t := TableFor(kind)
	rows := records.Rows(recs)

	if l.strategy == StrategyBulkCopy {
		kept, bad := splitNulls(t, rows)
		if bad > 0 {
			if !skipInvalid {
				return res, &errs.RowValidationError{
					Reason: fmt.Sprintf("%d rows have empty NOT NULL columns in %s; use skip_invalid_rows=true", bad, t.Name),
				}
			}
			res.Skipped = bad
			rows = kept
		}
		if len(rows) == 0 {
			return res, nil
		}
	}

	written := int64(len(rows))
	if mode == ModeUpsert {
		rows = lastByKey(t, rows)
	}

	start := time.Now()
	var err error
	switch {
	case l.strategy == StrategyBulkCopy && mode == ModeInsert:
		_, err = l.bulk.BulkInsert(ctx, t, rows)
	case l.strategy == StrategyBulkCopy:
		_, err = l.bulk.BulkUpsert(ctx, t, rows)
	case mode == ModeInsert:
		_, err = l.rows.RowInsert(ctx, t, rows, l.batchRows)
	default:
		_, err = l.rows.RowUpsert(ctx, t, rows, l.batchRows)
	}
	if err != nil {
		l.log.Warn("load failed",
			zap.String(logging.FieldTable, t.Name),
			zap.String(logging.FieldStrategy, string(l.strategy)),
			zap.String(logging.FieldMode, string(mode)),
			zap.Error(err))
		return LoadResult{Skipped: res.Skipped}, errs.BulkLoad(t.Name, string(mode), err)
	}

	res.Written = written
	l.log.Debug("load done",
		zap.String(logging.FieldTable, t.Name),
		zap.String(logging.FieldStrategy, string(l.strategy)),
		zap.String(logging.FieldMode, string(mode)),
		zap.Int64(logging.FieldInserted, res.Written),
		zap.Int(logging.FieldSkipped, res.Skipped),
		zap.Int64(logging.FieldDurationMS, time.Since(start).Milliseconds()))
	return res, nil
}

// splitNulls separates rows with a nil NOT NULL value.
func splitNulls(t Table, rows [][]any) ([][]any, int) {
	idx := t.NotNullIndexes()
	kept := rows[:0:0]
	bad := 0
	for _, r := range rows {
		ok := true
		for _, i := range idx {
			if i >= len(r) || r[i] == nil {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, r)
		} else {
			bad++
		}
	}
	return kept, bad
}

// lastByKey keeps the last row for each key, in order of those last rows.
func lastByKey(t Table, rows [][]any) [][]any {
	ki := t.KeyIndex()
	if ki < 0 {
		return rows
	}
	last := make(map[any]int, len(rows))
	for i, r := range rows {
		last[r[ki]] = i
	}
	if len(last) == len(rows) {
		return rows
	}
	out := make([][]any, 0, len(last))
	for i, r := range rows {
		if last[r[ki]] == i {
			out = append(out, r)
		}
	}
	return out
}

// Chunk splits rows into consecutive slices of at most n rows.
func Chunk(rows [][]any, n int) [][][]any {
	if n <= 0 {
		n = DefaultBatchRows
	}
	out := make([][][]any, 0, (len(rows)+n-1)/n)
	for len(rows) > n {
		out = append(out, rows[:n:n])
		rows = rows[n:]
	}
	if len(rows) > 0 {
		out = append(out, rows)
	}
	return out
}
