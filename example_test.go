package ledgerq_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/hupe1980/ledgerq"
	"github.com/hupe1980/ledgerq/engine"
	"github.com/hupe1980/ledgerq/filter"
	"github.com/hupe1980/ledgerq/model"
)

// Example_inMemory registers a few accounts and queries them by domain.
func Example_inMemory() {
	ctx := context.Background()
	db := ledgerq.InMemory().MustBuild(ctx)
	defer db.Close()

	for _, id := range []string{"alice@wonderland", "bob@wonderland", "carol@looking-glass"} {
		if _, err := db.Register(ctx, model.MustParseAccountID(id), nil); err != nil {
			log.Fatal(err)
		}
	}

	ids, err := db.Query(ctx, filter.MustParse(`{"Identifiable": {"EndsWith": "@wonderland"}}`))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(ids)
	// Output: [alice@wonderland bob@wonderland]
}

// Example_composite combines prefix and suffix filters.
func Example_composite() {
	ctx := context.Background()
	db := ledgerq.InMemory().MustBuild(ctx)
	defer db.Close()

	for _, id := range []string{"alice@wonderland", "alex@looking-glass", "bob@wonderland"} {
		if _, err := db.Register(ctx, model.MustParseAccountID(id), nil); err != nil {
			log.Fatal(err)
		}
	}

	expr := filter.And{
		filter.StartsWith{Prefix: "al"},
		filter.Not{Expr: filter.EndsWith{Suffix: "@looking-glass"}},
	}
	ids, err := db.Query(ctx, expr)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(expr)
	fmt.Println(ids)
	// Output:
	// And(StartsWith("al"), Not(EndsWith("@looking-glass")))
	// [alice@wonderland]
}

// Example_snapshot shows that a pinned snapshot ignores later writes.
func Example_snapshot() {
	ctx := context.Background()
	db := ledgerq.InMemory().MustBuild(ctx)
	defer db.Close()

	if _, err := db.Register(ctx, model.MustParseAccountID("alice@wonderland"), nil); err != nil {
		log.Fatal(err)
	}

	snap, err := db.Snapshot(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer snap.Release()

	if _, err := db.Register(ctx, model.MustParseAccountID("bob@wonderland"), nil); err != nil {
		log.Fatal(err)
	}

	before, _ := snap.Query(ctx, filter.StartsWith{})
	after, _ := db.Query(ctx, filter.StartsWith{})
	fmt.Println(len(before), len(after))
	// Output: 1 2
}

// Example_local reopens a data directory and recovers its accounts.
func Example_local() {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "ledgerq-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	db := ledgerq.Local(dir).MustBuild(ctx)
	if _, err := db.Register(ctx, model.MustParseAccountID("alice@wonderland"), map[string]string{"tier": "gold"}); err != nil {
		log.Fatal(err)
	}
	if err := db.Close(); err != nil {
		log.Fatal(err)
	}

	db = ledgerq.Local(dir).MustBuild(ctx)
	defer db.Close()

	err = db.View(ctx, func(s *engine.Snapshot) error {
		recs, err := s.QueryRecords(ctx, filter.Is{ID: "alice@wonderland"})
		if err != nil {
			return err
		}
		for _, r := range recs {
			fmt.Println(r.ID, r.Metadata["tier"])
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
	// Output: alice@wonderland gold
}
