package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/kjk/molstore/log"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Storus builds and queries storages of per-molecule values.

Usage:

	storus <command> [arguments]

The commands are:

	build       index a SMILES or SDF file and compute values for every molecule
	get         print values of a molecule by row, name or key
	info        print schema and statistics of a storage
	push        upload a storage to S3-compatible object storage
	pull        download a storage from S3-compatible object storage
`)
	os.Exit(2)
}

// must exits the program if err is not nil
func must(err error) {
	if err == nil {
		return
	}
	log.Close()
	fmt.Fprintf(os.Stderr, "storus: %s\n", err)
	os.Exit(1)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	default:
		fmt.Fprintln(os.Stderr, "unknown command", cmd)
		flag.Usage()
	case "build":
		buildCmd(ctx, args)
	case "get":
		getCmd(args)
	case "info":
		infoCmd(args)
	case "push":
		pushCmd(ctx, args)
	case "pull":
		pullCmd(ctx, args)
	}
}
