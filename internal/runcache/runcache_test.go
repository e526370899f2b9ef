package runcache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCaches(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	bc, err := OpenBolt(path, "")
	require.NoError(t, err)
	t.Cleanup(func() { bc.Close() })

	for name, c := range map[string]Cache{"memory": NewMemory(), "bolt": bc} {
		t.Run(name, func(t *testing.T) {
			var ts int64
			ok, err := c.Get(ctx, "timestamp", &ts)
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, c.Set(ctx, "timestamp", int64(1718000000123)))
			ok, err = c.Get(ctx, "timestamp", &ts)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, int64(1718000000123), ts)

			var wrong []string
			_, err = c.Get(ctx, "timestamp", &wrong)
			require.Error(t, err)
		})
	}
}

func TestBoltPersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	c, err := OpenBolt(path, "site")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "timestamp", int64(42)))
	require.NoError(t, c.Close())

	c, err = OpenBolt(path, "site")
	require.NoError(t, err)
	defer c.Close()
	var ts int64
	ok, err := c.Get(ctx, "timestamp", &ts)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(42), ts)
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	require.NoError(t, c.Set(context.Background(), "k", 1))
	ok, err := c.Get(context.Background(), "k", new(int))
	require.NoError(t, err)
	require.False(t, ok)
}
