package draft

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formguard/internal/ir"
)

func setupTestRedis(t *testing.T, opts ...RedisOption) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	b, err := NewRedisBackend("redis://"+s.Addr(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b, s
}

func TestNewRedisBackendUnreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	_, err := NewRedisBackend("redis://" + addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}

func TestNewRedisBackendBadURL(t *testing.T) {
	_, err := NewRedisBackend("not a url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}

func TestRedisSaveLoad(t *testing.T) {
	b, s := setupTestRedis(t)
	ctx := context.Background()

	data := ir.IRObject{
		"firstName": ir.IRString("Ada"),
		"tags":      ir.IRArray{ir.IRString("vip")},
	}
	rec, err := b.Save(ctx, "new-client", data)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, ir.MustDraftDigest("new-client", data), rec.Digest)

	assert.True(t, s.Exists("draft:new-client"))
	assert.Equal(t, `{"firstName":"Ada","tags":["vip"]}`, s.HGet("draft:new-client", "data"))

	got, err := b.Load(ctx, "new-client")
	require.NoError(t, err)
	assert.Equal(t, data, got.Data)
	assert.Equal(t, rec.Digest, got.Digest)
	assert.Equal(t, int64(1), got.Version)
}

func TestRedisSaveBumpsVersion(t *testing.T) {
	b, _ := setupTestRedis(t)
	ctx := context.Background()

	_, err := b.Save(ctx, "new-job", ir.IRObject{"notes": ir.IRString("a")})
	require.NoError(t, err)
	rec, err := b.Save(ctx, "new-job", ir.IRObject{"notes": ir.IRString("b")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Version)

	got, err := b.Load(ctx, "new-job")
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("b"), got.Data["notes"])
}

func TestRedisLoadNotFound(t *testing.T) {
	b, _ := setupTestRedis(t)
	_, err := b.Load(context.Background(), "new-lead")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisDelete(t *testing.T) {
	b, s := setupTestRedis(t)
	ctx := context.Background()

	_, err := b.Save(ctx, "new-lead", ir.IRObject{"name": ir.IRString("Sam")})
	require.NoError(t, err)
	require.NoError(t, b.Delete(ctx, "new-lead"))

	assert.False(t, s.Exists("draft:new-lead"))
	require.NoError(t, b.Delete(ctx, "new-lead"))
}

func TestRedisTTL(t *testing.T) {
	b, s := setupTestRedis(t, WithTTL(time.Hour))
	ctx := context.Background()

	_, err := b.Save(ctx, "new-quote", ir.IRObject{"totalCents": ir.IRInt(9900)})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, s.TTL("draft:new-quote"))

	s.FastForward(2 * time.Hour)

	_, err = b.Load(ctx, "new-quote")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisListWithPrefix(t *testing.T) {
	b, s := setupTestRedis(t, WithPrefix("crm:draft:"))
	ctx := context.Background()

	require.NoError(t, s.Set("crm:other", "x"))
	for _, key := range []string{"new-lead", "new-client"} {
		_, err := b.Save(ctx, key, ir.IRObject{})
		require.NoError(t, err)
	}

	list, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new-client", list[0].Key)
	assert.Equal(t, "new-lead", list[1].Key)
}

// The autosaver works unchanged over Redis.
func TestAutosaverOverRedis(t *testing.T) {
	b, _ := setupTestRedis(t)
	reg := newQuietRegistry()

	a := newAutosaver(t, b, reg, 0)
	a.Update(ir.IRObject{"firstName": ir.IRString("Grace")})
	a.Close()

	again := newAutosaver(t, b, newQuietRegistry(), 0)
	require.True(t, again.HasDraft())
	assert.Equal(t, ir.IRString("Grace"), again.DraftData()["firstName"])
}
