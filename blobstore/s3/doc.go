// Package s3 stores ledgerq checkpoints in Amazon S3.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "ledger/node-1")
//
//	eng, err := engine.Open(ctx, engine.WithBlobStore(store))
//
// S3 has no compare-and-swap for plain objects. When several nodes may
// write checkpoints under the same prefix, wrap the store in a
// DDBCommitStore so the CURRENT pointer is committed with a DynamoDB
// conditional write:
//
//	commits := s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg),
//	    "ledgerq-commits", "s3://my-bucket/ledger/node-1")
package s3
