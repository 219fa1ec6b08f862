package counter

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	"github.com/tckz/visitor-counter/internal/config"
)

// Open builds the store named by cfg.Backend. The returned Counter is meant to
// be created once per process and shared by every invocation.
func Open(ctx context.Context, cfg *config.Config) (Counter, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewLocalCounter(0), nil
	case config.BackendRedis:
		return NewRedisCounter(NewRedisClient(cfg), cfg.Table), nil
	case config.BackendDatastore:
		cl, err := datastore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("datastore.NewClient: %w", err)
		}
		return NewDatastoreCounter(cl, cfg.Table, cfg.DatastoreNamespace), nil
	case config.BackendDynamoDB:
		cl, err := NewDynamoClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewDynamoCounter(cl, cfg.Table), nil
	default:
		return nil, &config.ConfigurationError{Field: "Backend", Err: fmt.Errorf("unknown backend %q", cfg.Backend)}
	}
}

// retries turns the attempt budget into the number of extra tries a client may make.
func retries(cfg *config.Config) int {
	if cfg.MaxAttempts <= 1 {
		return 0
	}
	return cfg.MaxAttempts - 1
}

func NewRedisClient(cfg *config.Config) redis.UniversalClient {
	maxRetries := retries(cfg)
	if maxRetries == 0 {
		// 0 means the library default (3) to go-redis.
		maxRetries = -1
	}

	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{cfg.RedisAddr},
		DialTimeout:  time.Second * 2,
		ReadTimeout:  time.Second * 2,
		WriteTimeout: time.Second * 2,
		PoolSize:     200,
		PoolTimeout:  time.Second * 5,
		MaxRetries:   maxRetries,
	})
}

func NewDynamoClient(ctx context.Context, cfg *config.Config) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRetryMaxAttempts(cfg.MaxAttempts))
	if err != nil {
		return nil, fmt.Errorf("awsconfig.LoadDefaultConfig: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	}), nil
}
