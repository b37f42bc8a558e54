package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kjk/molstore/descriptors"
	"github.com/kjk/molstore/keyindex"
	"github.com/kjk/molstore/log"
	"github.com/kjk/molstore/molindex"
	"github.com/kjk/molstore/pipeline"
	"github.com/kjk/molstore/rawstore"
	"github.com/kjk/molstore/u"
)

type buildOptions struct {
	Source string
	Dir    string

	HasHeader    bool
	Sep          string
	SmilesColumn string
	NameColumn   string
	// input is SDF. Also assumed for .sdf files
	SDF bool
	// index rows by molecular formula
	IndexKey bool

	BatchSize int
	Workers   int
}

func buildCmdUsage(flags *flag.FlagSet) {
	fmt.Fprint(os.Stderr, `usage: storus build [flags] source storage

Command build indexes source, a SMILES (one molecule per line) or SDF file,
and computes values for every molecule into a new storage directory.
Source can be a local file or an http(s):// url and can be compressed
(.gz, .bz2, .zst, .br).

The flags are:
`)
	flags.PrintDefaults()
	os.Exit(2)
}

func buildCmd(ctx context.Context, args []string) {
	var (
		opts  buildOptions
		flags = flag.NewFlagSet("storus build", flag.ExitOnError)
	)
	flags.BoolVar(&opts.HasHeader, "hasHeader", false, "first line is a header with column names")
	flags.StringVar(&opts.Sep, "sep", "\t", "field separator")
	flags.StringVar(&opts.SmilesColumn, "smilesColumn", "0", "SMILES column, by 0-based index or header name")
	flags.StringVar(&opts.NameColumn, "nameColumn", "", "name column, by 0-based index or header name")
	flags.BoolVar(&opts.SDF, "sdf", false, "source is an SDF file")
	flags.BoolVar(&opts.IndexKey, "index-key", false, "index molecules by formula")
	flags.IntVar(&opts.BatchSize, "batch", pipeline.DefaultBatchSize, "molecules per batch")
	flags.IntVar(&opts.Workers, "workers", 0, "batches processed in parallel, number of CPUs if 0")
	flags.BoolVar(&log.Verbose, "v", false, "verbose logging")
	flags.Usage = func() { buildCmdUsage(flags) }
	must(flags.Parse(args))
	if flags.NArg() != 2 {
		flags.Usage()
	}
	opts.Source, opts.Dir = flags.Arg(0), flags.Arg(1)
	_, err := build(ctx, &opts)
	must(err)
}

func isSDF(path string) bool {
	_, base := u.CompressedExt(path)
	return strings.EqualFold(filepath.Ext(base), ".sdf")
}

// build creates a storage in opts.Dir, which must not exist
func build(ctx context.Context, opts *buildOptions) (stats *pipeline.Stats, err error) {
	dir := opts.Dir
	if u.PathExists(dir) {
		return nil, fmt.Errorf("directory for storage '%s' already exists", dir)
	}
	if err = os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	log.Init(&log.Config{Dir: filepath.Join(dir, logDirName)})
	defer log.Close()

	var closers []io.Closer
	defer func() {
		for _, c := range slices.Backward(closers) {
			err = errors.Join(err, c.Close())
		}
		if err != nil {
			log.Errorf("building '%s' failed with '%s'\n", dir, err)
		}
	}()

	timeStart := time.Now()
	src, err := u.MaterializeSource(ctx, opts.Source, filepath.Join(dir, sourceDirName))
	if err != nil {
		return nil, err
	}
	log.Verbosef("materialized '%s' as '%s' in %s\n", opts.Source, src, u.FormatDuration(time.Since(timeStart)))

	attrs := map[string]string{
		attrSource:     opts.Source,
		attrSourcePath: src,
		attrCalculator: "counts",
	}
	// materialized sources move with the storage
	if rel, err := filepath.Rel(dir, src); err == nil && filepath.IsLocal(rel) {
		attrs[attrSourcePath] = filepath.ToSlash(rel)
	} else if abs, err := filepath.Abs(src); err == nil {
		attrs[attrSourcePath] = abs
	}

	indexDir := filepath.Join(dir, molIndexDirName)
	var f *molindex.File
	if opts.SDF || isSDF(opts.Source) {
		attrs[attrFormat] = formatSDF
		f, err = molindex.MakeSDFIndex(src, indexDir)
	} else {
		attrs[attrFormat] = formatSmiles
		attrs[attrHasHeader] = strconv.FormatBool(opts.HasHeader)
		attrs[attrSep] = opts.Sep
		attrs[attrSmilesColumn] = opts.SmilesColumn
		attrs[attrNameColumn] = opts.NameColumn
		f, err = molindex.MakeSmilesIndex(src, indexDir, fileOptions(opts.HasHeader, opts.Sep, opts.SmilesColumn, opts.NameColumn))
	}
	if err != nil {
		return nil, err
	}
	closers = append(closers, f)
	log.Logf("indexed %d molecules of '%s' (%s)\n", f.Records(), src, u.FormatSize(u.FileSize(src)))

	var calc descriptors.Counts
	store, err := rawstore.Create(dir, calc.Columns(), f.Records(), &rawstore.CreateOptions{
		AllowExistingDir: true,
		Attrs:            attrs,
	})
	if err != nil {
		return nil, err
	}
	closers = append(closers, store)

	pipelineOpts := &pipeline.Options{
		BatchSize: opts.BatchSize,
		Workers:   opts.Workers,
	}
	if f.HasName() {
		if pipelineOpts.Names, err = keyindex.Open(filepath.Join(dir, namesDirName)); err != nil {
			return nil, err
		}
		closers = append(closers, pipelineOpts.Names)
	}
	if opts.IndexKey {
		if pipelineOpts.Keys, err = keyindex.Open(filepath.Join(dir, keysDirName)); err != nil {
			return nil, err
		}
		closers = append(closers, pipelineOpts.Keys)
	}

	fn := func(ctx context.Context, row int64, molecule string) ([]any, string, error) {
		values, formula, ok := calc.ProcessAny(molecule)
		if !ok {
			return nil, "", nil
		}
		return values, formula, nil
	}
	stats, err = pipeline.Run(ctx, f, store, fn, pipelineOpts)
	if err != nil {
		return stats, err
	}
	log.Logf("built '%s' in %s: %d molecules, %d written, %d skipped (%.2f%%)\n", dir, u.FormatDuration(time.Since(timeStart)), stats.Rows, stats.Written, stats.Skipped, u.Percent(stats.Rows, stats.Skipped))
	if stats.DuplicateNames > 0 {
		log.Warnf("%d duplicate names, first molecule with a given name is indexed\n", stats.DuplicateNames)
	}
	return stats, nil
}
