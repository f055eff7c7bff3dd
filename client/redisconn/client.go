// Package redisconn adapts a go-redis client to the pool client
// interface. Command events reach the pool observer through a redis
// hook.
package redisconn

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voltgrid/dbpool/pool"
)

type Client struct {
	rdb  *redis.Client
	hook *observerHook
}

// Dialer connects redis clients from a redis:// URL.
type Dialer struct{}

func (Dialer) Dial(ctx context.Context, url string) (pool.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	// One connection per pool slot; pooling happens above this adapter.
	opts.PoolSize = 1
	opts.MinIdleConns = 0

	rdb := redis.NewClient(opts)
	hook := &observerHook{}
	rdb.AddHook(hook)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &Client{rdb: rdb, hook: hook}, nil
}

func (c *Client) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *Client) Close(context.Context) error { return c.rdb.Close() }

// Subscribe wires the pool observer into the command hook.
func (c *Client) Subscribe(o pool.Observer) { c.hook.subscribe(o) }

// Redis exposes the raw client for commands.
func (c *Client) Redis() *redis.Client { return c.rdb }

// observerHook forwards command timing to the pool observer. redis.Nil
// is a cache miss, not a failure.
type observerHook struct {
	mu  sync.RWMutex
	obs pool.Observer
}

func (h *observerHook) subscribe(o pool.Observer) {
	h.mu.Lock()
	h.obs = o
	h.mu.Unlock()
}

func (h *observerHook) observer() pool.Observer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.obs
}

func (h *observerHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *observerHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.report(time.Since(start), err)
		return err
	}
}

func (h *observerHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.report(time.Since(start), err)
		return err
	}
}

func (h *observerHook) report(elapsed time.Duration, err error) {
	o := h.observer()
	if o == nil {
		return
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		o.QueryFailed(err)
		return
	}
	o.QueryCompleted(elapsed)
}
