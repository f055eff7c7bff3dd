// Package sqlconn adapts a database/sql handle to the pool client
// interface, covering any driver with a database/sql binding. Internal
// database/sql pooling is pinned to a single connection so the pool owns
// all lifecycle decisions.
package sqlconn

import (
	"context"
	"database/sql"

	"github.com/voltgrid/dbpool/pool"
)

type Client struct {
	db *sql.DB
}

// Dialer opens database/sql handles for the given driver.
type Dialer struct {
	DriverName string
}

func (d Dialer) Dial(ctx context.Context, url string) (pool.Client, error) {
	db, err := sql.Open(d.DriverName, url)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Client{db: db}, nil
}

// FromDB wraps an existing handle; used with sqlmock in tests.
func FromDB(db *sql.DB) *Client { return &Client{db: db} }

func (c *Client) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *Client) Close(context.Context) error { return c.db.Close() }

// DB exposes the raw handle for queries.
func (c *Client) DB() *sql.DB { return c.db }
