// ledgerq runs an account registry node and talks to one.
//
// Usage:
//
//	ledgerq serve [--config ledgerq.yaml]
//	ledgerq register <id> [--meta key=value ...]
//	ledgerq unregister <id>
//	ledgerq list [--filter JSON | --is ID | --starts-with P | --ends-with S | --contains S]
//	             [--offset N] [--limit N] [--wait --count N --timeout D --interval D] [--json]
//	ledgerq checkpoint
//
// Client commands talk to --addr, which defaults to $LEDGERQ_ADDR or
// http://localhost:8080.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

const defaultAddr = "http://localhost:8080"

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

func commands() []command {
	return []command{
		{"serve", "run a node", runServe},
		{"register", "register an account", runRegister},
		{"unregister", "unregister an account", runUnregister},
		{"list", "list accounts matching a filter", runList},
		{"checkpoint", "write a checkpoint on the node", runCheckpoint},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		return nil
	}
	for _, c := range commands() {
		if c.name == args[0] {
			return c.run(ctx, args[1:], stdout, stderr)
		}
	}
	printUsage(stderr)
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: ledgerq <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands() {
		fmt.Fprintf(w, "  %-11s %s\n", c.name, c.summary)
	}
}

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("ledgerq "+name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func addrFlag(fs *pflag.FlagSet) *string {
	addr := os.Getenv("LEDGERQ_ADDR")
	if addr == "" {
		addr = defaultAddr
	}
	return fs.String("addr", addr, "node address")
}
