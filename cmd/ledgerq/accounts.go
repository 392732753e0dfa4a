package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/hupe1980/ledgerq/client"
	"github.com/hupe1980/ledgerq/filter"
	"github.com/hupe1980/ledgerq/model"
	"github.com/hupe1980/ledgerq/retry"
)

func runRegister(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("register", stderr)
	addr := addrFlag(fs)
	meta := fs.StringToString("meta", nil, "metadata as key=value pairs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := oneAccountArg(fs)
	if err != nil {
		return err
	}

	rec, err := client.New(*addr).Register(ctx, id, *meta)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "registered %s (lsn %d)\n", rec.ID, rec.LSN)
	return nil
}

func runUnregister(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("unregister", stderr)
	addr := addrFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := oneAccountArg(fs)
	if err != nil {
		return err
	}

	if err := client.New(*addr).Unregister(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "unregistered %s\n", id)
	return nil
}

func runCheckpoint(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("checkpoint", stderr)
	addr := addrFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	lsn, err := client.New(*addr).Checkpoint(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "checkpoint at LSN %d\n", lsn)
	return nil
}

func oneAccountArg(fs *pflag.FlagSet) (model.AccountID, error) {
	if fs.NArg() != 1 {
		return model.AccountID{}, fmt.Errorf("expected exactly one account id, got %d arguments", fs.NArg())
	}
	return model.ParseAccountID(fs.Arg(0))
}

type listFlags struct {
	filter     string
	is         string
	startsWith string
	endsWith   string
	contains   string
}

// expr builds the filter from the flags. Exactly one must be set;
// --starts-with "" is a valid match-all filter.
func (f listFlags) expr(fs *pflag.FlagSet) (filter.Expr, error) {
	var (
		set  []string
		expr filter.Expr
	)
	if fs.Changed("filter") {
		set = append(set, "--filter")
		e, err := filter.Parse([]byte(f.filter))
		if err != nil {
			return nil, err
		}
		expr = e
	}
	if fs.Changed("is") {
		set = append(set, "--is")
		expr = filter.Is{ID: f.is}
	}
	if fs.Changed("starts-with") {
		set = append(set, "--starts-with")
		expr = filter.StartsWith{Prefix: f.startsWith}
	}
	if fs.Changed("ends-with") {
		set = append(set, "--ends-with")
		expr = filter.EndsWith{Suffix: f.endsWith}
	}
	if fs.Changed("contains") {
		set = append(set, "--contains")
		expr = filter.Contains{Substring: f.contains}
	}
	switch len(set) {
	case 0:
		return nil, errors.New("one of --filter, --is, --starts-with, --ends-with or --contains is required")
	case 1:
		return expr, nil
	default:
		return nil, fmt.Errorf("conflicting filter flags: %s", strings.Join(set, ", "))
	}
}

func runList(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("list", stderr)
	addr := addrFlag(fs)

	var lf listFlags
	fs.StringVar(&lf.filter, "filter", "", `wire filter, e.g. '{"Identifiable": {"EndsWith": "@wonderland"}}'`)
	fs.StringVar(&lf.is, "is", "", "exact account id")
	fs.StringVar(&lf.startsWith, "starts-with", "", "account id prefix")
	fs.StringVar(&lf.endsWith, "ends-with", "", "account id suffix")
	fs.StringVar(&lf.contains, "contains", "", "account id substring")

	offset := fs.Int("offset", 0, "skip the first N results")
	limit := fs.Int("limit", 0, "return at most N results (0 = all)")
	wait := fs.Bool("wait", false, "poll until at least --count accounts match")
	count := fs.Int("count", 1, "number of matches --wait waits for")
	timeout := fs.Duration("timeout", retry.DefaultTimeout, "how long --wait polls")
	interval := fs.Duration("interval", retry.DefaultInterval, "pause between --wait polls")
	asJSON := fs.Bool("json", false, "print the result as JSON")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	expr, err := lf.expr(fs)
	if err != nil {
		return err
	}

	c := client.New(*addr)
	opts := client.QueryOptions{Offset: *offset, Limit: *limit}

	var res *client.QueryResult
	if *wait {
		res, err = retry.WaitFor(ctx, func(ctx context.Context) (*client.QueryResult, bool, error) {
			r, err := c.Query(ctx, expr, opts)
			if err != nil {
				return nil, false, err
			}
			return r, len(r.Accounts) >= *count, nil
		},
			retry.WithTimeout(*timeout),
			retry.WithInterval(*interval),
			retry.WithRetryIf(func(err error) bool { return errors.Is(err, client.ErrUnavailable) }),
		)
	} else {
		res, err = c.Query(ctx, expr, opts)
	}
	if err != nil {
		return err
	}

	return printAccounts(stdout, res, *asJSON)
}

func printAccounts(w io.Writer, res *client.QueryResult, asJSON bool) error {
	if asJSON {
		enc := gojson.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	for _, id := range res.Accounts {
		fmt.Fprintln(w, id)
	}
	return nil
}
