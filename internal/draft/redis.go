package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/formguard/internal/ir"
)

// saveDraftScript writes a draft hash and bumps its version atomically.
// KEYS[1] = draft key (e.g. "draft:new-client")
// ARGV[1] = canonical JSON data
// ARGV[2] = digest
// ARGV[3] = TTL in milliseconds (0 = no expiry)
var saveDraftScript = redis.NewScript(`
local version = redis.call("HINCRBY", KEYS[1], "version", 1)
redis.call("HSET", KEYS[1], "data", ARGV[1], "digest", ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
    redis.call("PEXPIRE", KEYS[1], ttl)
end
return version
`)

// RedisBackend stores drafts as Redis hashes under a key prefix.
type RedisBackend struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisBackend.
type RedisOption func(*RedisBackend)

// WithTTL expires drafts that have not been written for ttl.
func WithTTL(ttl time.Duration) RedisOption {
	return func(b *RedisBackend) {
		b.ttl = ttl
	}
}

// WithPrefix sets the key prefix (default "draft:").
func WithPrefix(prefix string) RedisOption {
	return func(b *RedisBackend) {
		b.prefix = prefix
	}
}

// NewRedisBackend connects to redisURL and verifies the connection.
func NewRedisBackend(redisURL string, opts ...RedisOption) (*RedisBackend, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisBackendWithClient(client, opts...), nil
}

// NewRedisBackendWithClient creates a backend from an existing client.
func NewRedisBackendWithClient(client *redis.Client, opts ...RedisOption) *RedisBackend {
	b := &RedisBackend{
		client: client,
		prefix: "draft:",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *RedisBackend) key(draftKey string) string {
	return b.prefix + draftKey
}

func (b *RedisBackend) Load(ctx context.Context, key string) (ir.DraftRecord, error) {
	fields, err := b.client.HGetAll(ctx, b.key(key)).Result()
	if err != nil {
		return ir.DraftRecord{}, fmt.Errorf("load draft %q: %w", key, err)
	}
	if len(fields) == 0 {
		return ir.DraftRecord{}, ErrNotFound
	}
	return decodeRedisDraft(key, fields)
}

func (b *RedisBackend) Save(ctx context.Context, key string, data ir.IRObject) (ir.DraftRecord, error) {
	if data == nil {
		data = ir.IRObject{}
	}
	raw, err := ir.MarshalCanonical(data)
	if err != nil {
		return ir.DraftRecord{}, fmt.Errorf("save draft: %w", err)
	}
	digest, err := ir.DraftDigest(key, data)
	if err != nil {
		return ir.DraftRecord{}, fmt.Errorf("save draft: %w", err)
	}

	version, err := saveDraftScript.Run(ctx, b.client,
		[]string{b.key(key)},
		string(raw), digest, b.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return ir.DraftRecord{}, fmt.Errorf("save draft: %w", err)
	}

	return ir.DraftRecord{
		Key:     key,
		Data:    ir.CloneObject(data),
		Digest:  digest,
		Version: version,
	}, nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.key(key)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// List scans the prefix and returns every draft ordered by key.
func (b *RedisBackend) List(ctx context.Context) ([]ir.DraftRecord, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, b.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(b.prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan drafts: %w", err)
	}
	sort.Strings(keys)

	out := make([]ir.DraftRecord, 0, len(keys))
	for _, k := range keys {
		rec, err := b.Load(ctx, k)
		if err == ErrNotFound {
			continue // expired between scan and load
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close closes the Redis connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func decodeRedisDraft(key string, fields map[string]string) (ir.DraftRecord, error) {
	var data ir.IRObject
	if err := json.Unmarshal([]byte(fields["data"]), &data); err != nil {
		return ir.DraftRecord{}, fmt.Errorf("decode draft %q: %w", key, err)
	}
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return ir.DraftRecord{}, fmt.Errorf("decode draft %q version: %w", key, err)
	}
	return ir.DraftRecord{
		Key:     key,
		Data:    data,
		Digest:  fields["digest"],
		Version: version,
	}, nil
}
