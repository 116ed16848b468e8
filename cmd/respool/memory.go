package main

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-i2p/respool/lib/pool"
)

var errMemConnClosed = errors.New("memory connection closed")

// memConn is an in-process stand-in for a database connection.
type memConn struct {
	id     uint64
	opened time.Time
	uses   atomic.Uint64
	closed atomic.Bool
}

// Use records one round of work on the connection.
func (c *memConn) Use(ctx context.Context) error {
	if c.closed.Load() {
		return errMemConnClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.uses.Add(1)
	return nil
}

// Close marks the connection closed.
func (c *memConn) Close() error {
	c.closed.Store(true)
	return nil
}

// memoryFactory returns a factory creating memConns after dial, which
// simulates connection setup cost.
func memoryFactory(dial time.Duration) pool.Factory[*memConn] {
	var next atomic.Uint64
	return func(ctx context.Context) (*memConn, error) {
		if dial > 0 {
			t := time.NewTimer(dial)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return &memConn{id: next.Add(1), opened: time.Now()}, nil
	}
}
