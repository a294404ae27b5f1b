package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/m-mizutani/goerr/v2"
	"github.com/whippetlabs/whippet/pkg/model"
)

const (
	sessionKeyPrefix = "whippet:sess:"
	domainKeyPrefix  = "whippet:domain:"
)

// SessionStore is the key-value persistence for conversation metadata
// blobs, keyed by session ID. A session's own reads must observe its own
// writes; Redis satisfies that for a single key.
type SessionStore interface {
	// GetBlob returns the stored blob, or (nil, nil) when the session has
	// no state yet.
	GetBlob(ctx context.Context, id model.SessionID) ([]byte, error)
	PutBlob(ctx context.Context, id model.SessionID, blob []byte) error
}

// DomainCache is the fast lookup tier of domain resolution. A miss is
// always a cache miss, never an authoritative "not found".
type DomainCache interface {
	// GetIndex returns the cached index ID for a normalized domain, or
	// ("", nil) on a miss.
	GetIndex(ctx context.Context, domain string) (model.IndexID, error)
	PutIndex(ctx context.Context, domain string, indexID model.IndexID) error
}

// Redis implements both SessionStore and DomainCache over one connection
type Redis struct {
	client     *redis.Client
	sessionTTL time.Duration
	domainTTL  time.Duration
}

// RedisOption is a functional option for the Redis adapter
type RedisOption func(*Redis)

// WithSessionTTL overrides how long idle session blobs are retained
func WithSessionTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.sessionTTL = ttl
	}
}

// WithDomainTTL overrides the domain cache entry lifetime
func WithDomainTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.domainTTL = ttl
	}
}

// NewRedis creates a Redis-backed SessionStore and DomainCache. The
// returned value implements both interfaces.
func NewRedis(ctx context.Context, addr, password string, opts ...RedisOption) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to connect to redis", goerr.V("addr", addr))
	}

	r := &Redis{
		client:     client,
		sessionTTL: 7 * 24 * time.Hour,
		domainTTL:  10 * time.Minute,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

func (r *Redis) GetBlob(ctx context.Context, id model.SessionID) ([]byte, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+string(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get session blob", goerr.V("session_id", id))
	}
	return data, nil
}

func (r *Redis) PutBlob(ctx context.Context, id model.SessionID, blob []byte) error {
	if err := r.client.Set(ctx, sessionKeyPrefix+string(id), blob, r.sessionTTL).Err(); err != nil {
		return goerr.Wrap(err, "failed to put session blob", goerr.V("session_id", id))
	}
	return nil
}

func (r *Redis) GetIndex(ctx context.Context, domain string) (model.IndexID, error) {
	val, err := r.client.Get(ctx, domainKeyPrefix+domain).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", goerr.Wrap(err, "failed to get domain cache entry", goerr.V("domain", domain))
	}
	return model.IndexID(val), nil
}

func (r *Redis) PutIndex(ctx context.Context, domain string, indexID model.IndexID) error {
	if err := r.client.Set(ctx, domainKeyPrefix+domain, string(indexID), r.domainTTL).Err(); err != nil {
		return goerr.Wrap(err, "failed to put domain cache entry", goerr.V("domain", domain))
	}
	return nil
}

// Close releases the underlying connection pool
func (r *Redis) Close() error {
	return r.client.Close()
}
