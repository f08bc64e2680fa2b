package database

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestConnectRedisDisabledWithoutURL(t *testing.T) {
	client, err := ConnectRedis(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, client)
}

func TestConnectRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client, err := ConnectRedis(context.Background(), "redis://"+server.Addr()+"/0")
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "stats:assignment:1", "{}", 0).Err())
	require.True(t, server.Exists("stats:assignment:1"))
}

func TestConnectRedisRejectsBadURL(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "memcached://localhost:11211")
	require.ErrorContains(t, err, "invalid statistics cache url")

	server, err := miniredis.Run()
	require.NoError(t, err)
	addr := server.Addr()
	server.Close()

	_, err = ConnectRedis(context.Background(), "redis://"+addr)
	require.ErrorContains(t, err, "statistics cache unreachable")
}
