package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/lotledger/lotledger/internal/store/gormdb"
	"github.com/lotledger/lotledger/internal/store/memory"
	"github.com/lotledger/lotledger/internal/store/redisdoc"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()

	mem, err := Open(ctx, Config{}, nil)
	require.NoError(t, err)
	require.IsType(t, &memory.Store{}, mem.Store)
	mem.Close()

	lite, err := Open(ctx, Config{Driver: DriverSQLite, DSN: ":memory:"}, nil)
	require.NoError(t, err)
	require.IsType(t, &gormdb.Store{}, lite.Store)
	lite.Close()

	mr := miniredis.RunT(t)
	doc, err := Open(ctx, Config{Driver: DriverRedis, DSN: "redis://" + mr.Addr() + "/0", Namespace: "t"}, nil)
	require.NoError(t, err)
	require.IsType(t, &redisdoc.Store{}, doc.Store)
	doc.Close()

	_, err = Open(ctx, Config{Driver: DriverRedis}, nil)
	require.Error(t, err)

	_, err = Open(ctx, Config{Driver: "cassandra"}, nil)
	require.Error(t, err)
}

func TestOpenRedisFallsBackToSharedClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backend, err := Open(context.Background(), Config{Driver: DriverRedis, DSN: "", Namespace: "t", Redis: client}, nil)
	require.NoError(t, err)
	require.IsType(t, &redisdoc.Store{}, backend.Store)
	backend.Close()
	require.NoError(t, client.Ping(context.Background()).Err())
}
