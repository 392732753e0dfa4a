package main

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hupe1980/ledgerq/blobstore"
	"github.com/hupe1980/ledgerq/blobstore/minio"
	s3store "github.com/hupe1980/ledgerq/blobstore/s3"
	"github.com/hupe1980/ledgerq/internal/config"
)

// openStore builds the checkpoint store. A nil store lets the engine use
// the local store under the data directory.
func openStore(ctx context.Context, cfg config.StoreConfig) (blobstore.BlobStore, error) {
	switch cfg.Type {
	case config.StoreLocal, config.StoreMemory:
		return nil, nil
	case config.StoreS3:
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		store := s3store.NewStore(awss3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix)
		if cfg.DynamoDBTable == "" {
			return store, nil
		}
		baseURI := "s3://" + cfg.Bucket + "/" + strings.TrimPrefix(cfg.Prefix, "/")
		return s3store.NewDDBCommitStore(store, dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, baseURI), nil
	case config.StoreMinIO:
		store, err := minio.Dial(ctx, minio.Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Secure:    cfg.Secure,
			Region:    cfg.Region,
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
