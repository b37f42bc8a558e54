package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kjk/molstore/log"
	"github.com/kjk/molstore/rawstore"
	"github.com/kjk/molstore/storesync"
	"github.com/kjk/molstore/u"
)

const syncUsage = `usage: storus %s storage prefix

Credentials and bucket are read from MOLSTORE_S3_ACCESS, MOLSTORE_S3_SECRET,
MOLSTORE_S3_BUCKET, MOLSTORE_S3_ENDPOINT, MOLSTORE_S3_REGION and
MOLSTORE_S3_INSECURE environment variables.
`

func syncArgs(cmd string, args []string) (dir string, prefix string) {
	flags := flag.NewFlagSet("storus "+cmd, flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, syncUsage, cmd)
		os.Exit(2)
	}
	must(flags.Parse(args))
	if flags.NArg() != 2 {
		flags.Usage()
	}
	return flags.Arg(0), flags.Arg(1)
}

func newSyncClient(ctx context.Context) *storesync.Client {
	config, err := storesync.ConfigFromEnv()
	must(err)
	client, err := storesync.New(ctx, config)
	must(err)
	return client
}

func pushCmd(ctx context.Context, args []string) {
	dir, prefix := syncArgs("push", args)
	if !rawstore.IsStore(dir) {
		must(fmt.Errorf("'%s' is not a storage", dir))
	}
	client := newSyncClient(ctx)
	n, err := client.Push(ctx, dir, prefix)
	must(err)
	log.Logf("pushed %d files of '%s' to '%s/%s'\n", n, dir, client.Bucket, prefix)
}

func pullCmd(ctx context.Context, args []string) {
	dir, prefix := syncArgs("pull", args)
	if u.PathExists(dir) {
		must(fmt.Errorf("directory for storage '%s' already exists", dir))
	}
	client := newSyncClient(ctx)
	n, err := client.Pull(ctx, prefix, dir)
	must(err)
	if !rawstore.IsStore(dir) {
		must(fmt.Errorf("'%s/%s' is not a storage, downloaded %d files", client.Bucket, prefix, n))
	}
	log.Logf("pulled %d files from '%s/%s' to '%s'\n", n, client.Bucket, prefix, dir)
}
