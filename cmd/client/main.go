// Package main is the hubviewer command line client.
package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/atinyakov/HubViewer/internal/cli"
)

var (
	version   string
	buildDate string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	opts := &cli.Options{}
	root := cli.NewRootCmd(opts)
	root.Version = fmt.Sprintf("%s (built %s)", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))

	err := root.ExecuteContext(ctx)
	_ = opts.Close()
	stop()
	if err != nil {
		os.Exit(1)
	}
}
