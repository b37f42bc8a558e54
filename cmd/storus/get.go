package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/kjk/molstore/rawstore"
	"github.com/kjk/molstore/u"
)

type getOptions struct {
	// look up by molecule name instead of row
	Name string
	// look up all molecules with a given key (formula)
	Key string
	Row int64
}

func getCmd(args []string) {
	var (
		opts  getOptions
		flags = flag.NewFlagSet("storus get", flag.ExitOnError)
	)
	flags.StringVar(&opts.Name, "name", "", "look up a molecule by name")
	flags.StringVar(&opts.Key, "key", "", "look up molecules by formula")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, "usage: storus get [-name name | -key formula] storage [row]\n\nThe flags are:\n")
		flags.PrintDefaults()
		os.Exit(2)
	}
	must(flags.Parse(args))
	byRow := opts.Name == "" && opts.Key == ""
	if byRow && flags.NArg() != 2 || !byRow && flags.NArg() != 1 {
		flags.Usage()
	}
	if byRow {
		row, err := strconv.ParseInt(flags.Arg(1), 10, 64)
		if err != nil {
			must(fmt.Errorf("invalid row '%s'", flags.Arg(1)))
		}
		opts.Row = row
	}
	must(get(os.Stdout, flags.Arg(0), &opts))
}

func get(w io.Writer, dir string, opts *getOptions) error {
	s, err := openStorage(dir)
	if err != nil {
		return err
	}
	defer s.Close()

	rows := []int64{opts.Row}
	switch {
	case opts.Name != "":
		if s.names == nil {
			return fmt.Errorf("storage '%s' has no names index", dir)
		}
		row, err := s.names.Get(opts.Name)
		if err != nil {
			return fmt.Errorf("name '%s': %w", opts.Name, err)
		}
		rows = []int64{row}
	case opts.Key != "":
		if s.keys == nil {
			return fmt.Errorf("storage '%s' has no key index, build it with -index-key", dir)
		}
		if rows, err = s.keys.Rows(opts.Key); err != nil {
			return err
		}
	}

	valid, err := s.store.LoadValid()
	if err != nil {
		return err
	}
	cols := s.store.Columns()
	for i, row := range rows {
		if i > 0 {
			fmt.Fprintln(w)
		}
		molecule, err := s.file.Smiles(row)
		if err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
		fmt.Fprintf(w, "row: %d\n", row)
		if s.file.HasName() {
			name, err := s.file.Name(row)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "name: %s\n", name)
		}
		fmt.Fprintf(w, "molecule: %s\n", molecule)
		isValid := valid.Contains(uint64(row))
		fmt.Fprintf(w, "valid: %v\n", isValid)
		if !isValid {
			continue
		}
		values, err := s.store.Get(row)
		if err != nil {
			return err
		}
		for j, c := range cols {
			fmt.Fprintf(w, "%s: %v\n", c.Name, values[j])
		}
	}
	return nil
}

func infoCmd(args []string) {
	flags := flag.NewFlagSet("storus info", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, "usage: storus info storage\n")
		os.Exit(2)
	}
	must(flags.Parse(args))
	if flags.NArg() != 1 {
		flags.Usage()
	}
	must(info(os.Stdout, flags.Arg(0)))
}

func info(w io.Writer, dir string) error {
	store, err := rawstore.Open(dir, &rawstore.OpenOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer store.Close()
	valid, err := store.LoadValid()
	if err != nil {
		return err
	}
	size, err := u.DirSize(dir)
	if err != nil {
		return err
	}
	rows := store.Rows()
	written := int64(valid.GetCardinality())
	fmt.Fprintf(w, "storage: %s\n", dir)
	fmt.Fprintf(w, "source: %s\n", store.Attr(attrSource))
	fmt.Fprintf(w, "format: %s\n", store.Attr(attrFormat))
	fmt.Fprintf(w, "molecules: %d\n", rows)
	fmt.Fprintf(w, "valid: %d (%.2f%%)\n", written, u.Percent(rows, written))
	fmt.Fprintf(w, "size: %s\n", u.FormatSize(size))
	fmt.Fprintf(w, "columns:\n")
	for _, c := range store.Columns() {
		fmt.Fprintf(w, "  %s %s\n", c.Name, c.Type)
	}
	return nil
}
