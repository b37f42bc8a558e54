// Package pipeline computes per-record values of a molecule file in
// parallel and writes them to a raw store.
//
// Records are processed in rounds of Workers batches of BatchSize rows.
// Each batch owns a disjoint row range and writes through its own
// rawstore.RangeWriter so workers never coordinate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/kjk/molstore/keyindex"
	"github.com/kjk/molstore/log"
	"github.com/kjk/molstore/molindex"
	"github.com/kjk/molstore/rawstore"
	"golang.org/x/sync/errgroup"
)

const DefaultBatchSize = 10000

// Func computes values for a molecule. Returning nil values skips the row.
// key, if not empty, is added to Options.Keys.
type Func func(ctx context.Context, row int64, molecule string) (values []any, key string, err error)

type Options struct {
	// rows per batch, DefaultBatchSize if 0
	BatchSize int
	// batches processed in parallel, runtime.NumCPU() if 0
	Workers int
	// if set, name of each written row is added. First row with a given
	// name wins
	Names *keyindex.Index
	// if set, keys returned by Func are added
	Keys *keyindex.Index
}

type Stats struct {
	Rows           int64
	Written        int64
	Skipped        int64
	Batches        int
	EmptyBatches   int
	DuplicateNames int
}

type result struct {
	row  int64
	key  string
	name string
}

type batch struct {
	w       *rawstore.RangeWriter
	results []result
}

func (b *batch) run(ctx context.Context, f *molindex.File, fn Func, withNames bool) error {
	r := b.w.Range()
	for row := r.Start; row < r.End; row++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		mol, err := f.Smiles(row)
		if errors.Is(err, molindex.ErrColumnIndexOutOfRange) {
			// malformed record
			continue
		}
		if err != nil {
			return err
		}
		values, key, err := fn(ctx, row, mol)
		if err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
		if values == nil {
			continue
		}
		if err = b.w.Put(row, values); err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
		res := result{row: row, key: key}
		if withNames {
			res.name, err = f.Name(row)
			if err != nil && !errors.Is(err, molindex.ErrColumnIndexOutOfRange) {
				return err
			}
		}
		b.results = append(b.results, res)
	}
	return nil
}

// Run computes values of every record of f and writes them to store,
// which must have f.Records() rows. Rows of skipped records stay zero.
// Written rows are saved as the store's validity bitmap.
func Run(ctx context.Context, f *molindex.File, store *rawstore.Store, fn Func, opts *Options) (*Stats, error) {
	if opts == nil {
		opts = &Options{}
	}
	batchSize := int64(opts.BatchSize)
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	n := f.Records()
	if store.Rows() != n {
		return nil, fmt.Errorf("store has %d rows, '%s' has %d records", store.Rows(), f.Path(), n)
	}
	withNames := opts.Names != nil
	if withNames && !f.HasName() {
		return nil, fmt.Errorf("%w: names index needs a name column", molindex.ErrMissingColumn)
	}

	timeStart := time.Now()
	stats := &Stats{}
	valid := roaring64.New()
	warnedEmpty := false
	for start := int64(0); start < n; {
		end := min(start+int64(workers)*batchSize, n)
		var ranges []rawstore.Range
		for s := start; s < end; s += batchSize {
			ranges = append(ranges, rawstore.Range{Start: s, End: min(s+batchSize, end)})
		}
		writers, err := store.Writers(ranges)
		if err != nil {
			return stats, err
		}
		batches := make([]*batch, len(writers))
		g, gctx := errgroup.WithContext(ctx)
		for i, w := range writers {
			b := &batch{w: w}
			batches[i] = b
			g.Go(func() error {
				return b.run(gctx, f, fn, withNames)
			})
		}
		if err = g.Wait(); err != nil {
			return stats, err
		}

		for _, b := range batches {
			stats.Batches++
			if len(b.results) == 0 {
				stats.EmptyBatches++
				if !warnedEmpty {
					warnedEmpty = true
					warnEmptyBatch(f, b.w.Range())
				}
			}
			if err = addToIndexes(b.results, opts, stats); err != nil {
				return stats, err
			}
		}
		valid.Or(rawstore.MergeWritten(writers...))
		stats.Rows = end
		log.Logf("Done with %d out of %d\n", end, n)
		start = end
	}
	stats.Written = int64(valid.GetCardinality())
	stats.Skipped = stats.Rows - stats.Written
	if err := store.SaveValid(valid); err != nil {
		return stats, err
	}
	log.EventWithDuration("pipeline", time.Since(timeStart), "source", f.Path(), "rows", stats.Rows, "written", stats.Written, "skipped", stats.Skipped)
	return stats, nil
}

func addToIndexes(results []result, opts *Options, stats *Stats) error {
	for _, res := range results {
		if opts.Names != nil && res.name != "" {
			prev, dup, err := opts.Names.SetUnique(res.name, res.row)
			if err != nil {
				return err
			}
			if dup {
				stats.DuplicateNames++
				log.Warnf("name '%s' duplicated at molecule %d and %d\n", res.name, prev, res.row)
			}
		}
		if opts.Keys != nil && res.key != "" {
			if err := opts.Keys.Append(res.key, res.row); err != nil {
				return err
			}
		}
	}
	return nil
}

// a batch with no results usually means a wrong molecule column
func warnEmptyBatch(f *molindex.File, r rawstore.Range) {
	log.Warnf("no molecules processed in batch %s, check the smiles column\n", r)
	var first []string
	for i := int64(0); i < min(f.Records(), 10); i++ {
		mol, err := f.Smiles(i)
		if err != nil {
			if !errors.Is(err, molindex.ErrMissingColumn) {
				log.Warnf("reading molecule %d: %s\n", i, err)
			}
			break
		}
		first = append(first, mol)
	}
	log.Warnf("first %d molecules:\n%s\n", len(first), strings.Join(first, "\n"))
}
