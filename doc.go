// Package ledgerq is an embedded account registry with identity-filtered
// queries over consistent snapshots.
//
// Accounts are identified by "name@domain". Queries select accounts with
// an exact match, a prefix or a suffix of the identifier, combined with
// And, Or and Not:
//
//	ctx := context.Background()
//	db, err := ledgerq.Local("./data").Build(ctx)
//	if err != nil {
//	    panic(err)
//	}
//	defer db.Close()
//
//	_, err = db.Register(ctx, model.MustParseAccountID("alice@wonderland"), nil)
//
//	ids, err := db.Query(ctx, filter.MustParse(`{"Identifiable": {"EndsWith": "@wonderland"}}`))
//
// # Storage
//
// InMemory keeps everything in memory. Local writes a WAL and checkpoints
// into a data directory. Remote recovers from and checkpoints into a
// blob store such as S3 or MinIO:
//
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "ledger/")
//	db, err := ledgerq.Remote(store).Build(ctx)
//
// # Snapshots
//
// Every query runs against one immutable version of the registry. A
// Snapshot pins a version for several queries:
//
//	err := db.View(ctx, func(s *engine.Snapshot) error {
//	    all, err := s.Query(ctx, filter.StartsWith{})
//	    ...
//	})
//
// # Waiting for registrations
//
// Registration may become visible later than the caller expects, for
// example behind a remote node. retry.WaitFor polls a query until it
// holds:
//
//	ids, err := retry.WaitFor(ctx, func(ctx context.Context) ([]model.AccountID, bool, error) {
//	    ids, err := c.ListFilter(ctx, filter.EndsWith{Suffix: "@wonderland"})
//	    return ids, len(ids) == 2, err
//	}, retry.WithTimeout(10*time.Second))
package ledgerq
