package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s SessionStore) {
	t.Helper()
	ctx := context.Background()

	v, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.Set(ctx, "lfusys:session:token", "abc", 0))
	v, err = s.Get(ctx, "lfusys:session:token")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	require.NoError(t, s.Set(ctx, "lfusys:session:token", "def", time.Hour))
	v, err = s.Get(ctx, "lfusys:session:token")
	require.NoError(t, err)
	assert.Equal(t, "def", v)

	require.NoError(t, s.Delete(ctx, "lfusys:session:token"))
	v, err = s.Get(ctx, "lfusys:session:token")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.Delete(ctx, "never-set"))
}

func TestRedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewRedisSessionStore(rdb)
	exerciseStore(t, s)

	require.NoError(t, s.Set(context.Background(), "ttl", "x", time.Minute))
	mr.FastForward(2 * time.Minute)
	v, err := s.Get(context.Background(), "ttl")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestMemorySessionStore(t *testing.T) {
	s := NewMemorySessionStore()
	exerciseStore(t, s)

	now := time.Now()
	s.now = func() time.Time { return now }
	require.NoError(t, s.Set(context.Background(), "ttl", "x", time.Minute))
	s.now = func() time.Time { return now.Add(time.Minute) }
	v, err := s.Get(context.Background(), "ttl")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestFileSessionStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s := NewFileSessionStore(path)
	exerciseStore(t, s)

	require.NoError(t, s.Set(context.Background(), "persisted", "yes", 0))

	reopened := NewFileSessionStore(path)
	v, err := reopened.Get(context.Background(), "persisted")
	require.NoError(t, err)
	assert.Equal(t, "yes", v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileSessionStore_Expired(t *testing.T) {
	s := NewFileSessionStore(filepath.Join(t.TempDir(), "session.json"))
	now := time.Now()
	s.now = func() time.Time { return now }
	require.NoError(t, s.Set(context.Background(), "ttl", "x", time.Second))

	s.now = func() time.Time { return now.Add(2 * time.Second) }
	v, err := s.Get(context.Background(), "ttl")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestFileSessionStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileSessionStore(path).Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := NewRedisRateLimiter(rdb)
	ctx := context.Background()

	n, err := l.Incr(ctx, "rate:ip:1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, l.Expire(ctx, "rate:ip:1", time.Minute))

	n, err = l.Incr(ctx, "rate:ip:1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	mr.FastForward(2 * time.Minute)
	n, err = l.Incr(ctx, "rate:ip:1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
