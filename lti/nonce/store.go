package nonce

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// NewStore builds a Store from a DSN. Supported forms:
//
//	mem://                     in-process memory store
//	redis://host:port[/db]     Redis, passed through to the Redis client
//	consul://host:port         Consul KV
//	dynamodb://table-name      DynamoDB table, credentials from the environment
//
// An empty DSN selects the memory store.
func NewStore(ctx context.Context, dsn string) (Store, error) {
	if dsn == "" {
		return NewMemoryStore(), nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("malformed nonce store DSN: %w", err)
	}
	switch parsed.Scheme {
	case "mem":
		return NewMemoryStore(), nil
	case "redis", "rediss":
		return NewRedisStore(dsn)
	case "consul":
		return NewConsulStore(parsed.Host)
	case "dynamodb":
		table := parsed.Host + strings.TrimSuffix(parsed.Path, "/")
		if table == "" {
			return nil, fmt.Errorf("nonce store DSN %q names no table", dsn)
		}
		return NewDynamoStore(ctx, table)
	default:
		return nil, fmt.Errorf("unsupported nonce store scheme %q", parsed.Scheme)
	}
}
