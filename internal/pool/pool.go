package pool

import (
	"fmt"
	"strings"
	"sync"
)

// Poolable represents any connection that can be parked and reused.
type Poolable interface {
	Close() error
}

// ConnectionPool parks idle connections keyed by target address. Workers hand
// their connection over when they finish; the coordinator borrows one for
// follow-up queries.
type ConnectionPool[T Poolable] struct {
	mu     sync.Mutex
	pools  map[string]chan T
	size   int // max idle connections per key
	closed bool
}

// NewConnectionPool creates a pool that keeps at most size idle connections per key.
func NewConnectionPool[T Poolable](size int) *ConnectionPool[T] {
	if size <= 0 {
		size = 1
	}
	return &ConnectionPool[T]{
		pools: make(map[string]chan T),
		size:  size,
	}
}

// Take removes an idle connection for key, if one is parked.
func (p *ConnectionPool[T]) Take(key string) (client T, ok bool) {
	p.mu.Lock()
	pool, exists := p.pools[key]
	p.mu.Unlock()
	if !exists {
		return client, false
	}

	select {
	case client, ok = <-pool:
		return client, ok
	default:
		return client, false
	}
}

// Put parks a connection for reuse. If the pool is full or already closed,
// the connection is closed instead.
func (p *ConnectionPool[T]) Put(key string, client T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return client.Close()
	}
	pool, ok := p.pools[key]
	if !ok {
		pool = make(chan T, p.size)
		p.pools[key] = pool
	}

	select {
	case pool <- client:
		return nil
	default:
		// Pool full, close the connection
		return client.Close()
	}
}

// Close closes all parked connections. Later Puts close their connection.
func (p *ConnectionPool[T]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []string
	for _, pool := range p.pools {
		close(pool)
		for client := range pool {
			if err := client.Close(); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("pool close errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
