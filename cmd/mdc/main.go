package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/strongdm/mdc/internal/cli"
	"github.com/strongdm/mdc/internal/mdcd"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	args := os.Args
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[1] {
	case "--version", "version":
		printVersion()
		return
	case "serve":
		err = mdcd.Main(append([]string{"mdc"}, args[2:]...))
	case "complete":
		err = cli.Complete(ctx, args[2:], cli.StdIO())
	case "fold":
		err = cli.Fold(ctx, args[2:], cli.StdIO())
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "mdc: unknown command %q\n", args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: mdc <command> [flags]

Commands:
  serve      Run the completion daemon (HTTP and websocket API)
  complete   Print completions for FILE at LINE:COL
  fold       Print component folding ranges for FILE
  version    Print build information`)
}

func printVersion() {
	shortHash := commit
	if len(shortHash) > 7 {
		shortHash = shortHash[:7]
	}
	fmt.Printf("version: %s\n", version)
	fmt.Printf("git hash: %s\n", shortHash)
	fmt.Printf("build date: %s\n", buildDate)
}
