package redis

import (
	"context"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"zentry/internal/config"
)

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient(context.Background(), config.StorageRedis{Host: host, Port: port, MaxAttempts: 1}, log)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewClient_Unreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	l.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err = NewClient(context.Background(), config.StorageRedis{
		Host:        "127.0.0.1",
		Port:        strconv.Itoa(addr.Port),
		MaxAttempts: 2,
	}, log)
	require.ErrorContains(t, err, "after 2 attempts")
}
