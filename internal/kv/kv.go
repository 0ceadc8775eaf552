// Package kv defines the key-value service operations the benchmark drives
// and a Redis implementation of them.
package kv

import (
	"context"
	"errors"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/torosent/kvbench/internal/endpoint"
)

// Conn is one established, authenticated connection to the service.
type Conn interface {
	// Get reads key. found is false when the key does not exist.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Incr atomically increments key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Info fetches a point-in-time status snapshot.
	Info(ctx context.Context) (Snapshot, error)
	Close() error
}

// Dialer establishes connections. Credential exchange happens inside Dial,
// so an authentication failure surfaces as a Dial error.
type Dialer interface {
	Dial(ctx context.Context, ep endpoint.Descriptor) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, ep endpoint.Descriptor) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, ep endpoint.Descriptor) (Conn, error) {
	return f(ctx, ep)
}

// Snapshot is a parsed status reply.
type Snapshot map[string]string

// Keys returns the snapshot keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ConnectedClients returns the connected_clients field, if present.
func (s Snapshot) ConnectedClients() (int, bool) {
	raw, ok := s["connected_clients"]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseInfo parses an INFO reply: "key:value" lines, "#" section headers ignored.
func ParseInfo(raw string) Snapshot {
	snap := Snapshot{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		snap[key] = value
	}
	return snap
}

var authPrefixes = []string{"NOAUTH", "WRONGPASS", "ERR invalid password", "ERR AUTH", "ERR Client sent AUTH"}

// IsConnectivity reports whether err is a connectivity-class failure: the
// connection could not be established, authenticated, or was lost.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, redis.ErrClosed) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connErr *ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		msg := redisErr.Error()
		for _, prefix := range authPrefixes {
			if strings.HasPrefix(msg, prefix) {
				return true
			}
		}
		return false
	}
	return strings.Contains(err.Error(), "connection pool timeout")
}

// ConnectError wraps a failure to establish or authenticate a connection.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return "connect " + e.Addr + ": " + e.Err.Error()
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}
