/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// Client is the long-lived database handle shared with request handlers.
// SQL and DB post queries through the HTTP fetch transport for Postgres
// URLs; Pool and PoolDB use persistent connections unless the transport
// routes pooled queries via fetch. For SQLite and MySQL both pairs are the
// same handle.
type Client struct {
	config   ConnectionConfig
	dialect  string
	endpoint string
	sqlDB    *sql.DB
	db       *bun.DB
	pool     *sql.DB
	poolDB   *bun.DB
	logger   Logger
}

// SQL returns the raw query client.
func (c *Client) SQL() *sql.DB { return c.sqlDB }

// DB returns the ORM wrapper around SQL.
func (c *Client) DB() *bun.DB { return c.db }

func (c *Client) Pool() *sql.DB { return c.pool }

func (c *Client) PoolDB() *bun.DB { return c.poolDB }

// Dialect is one of "postgres", "sqlite" or "mysql".
func (c *Client) Dialect() string { return c.dialect }

// Config returns the effective configuration, overrides included.
func (c *Client) Config() ConnectionConfig { return c.config }

func (c *Client) Transport() TransportConfig { return c.config.Transport }

// FetchEndpoint is empty for dialects without an HTTP transport.
func (c *Client) FetchEndpoint() string { return c.endpoint }

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// HealthCheck pings the query client and reports the pooled client stats.
func (c *Client) HealthCheck(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{
		Dialect:       c.dialect,
		Endpoint:      c.endpoint,
		LastCheckTime: start,
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.Ping(ctxTimeout)
	status.ResponseTime = time.Since(start)
	if err != nil {
		status.LastError = err.Error()
		if c.logger != nil {
			c.logger.Warn("Database health check failed", "error", err)
		}
	} else {
		status.Healthy = true
	}
	status.Pool = c.Stats()
	return status
}

// Stats returns database/sql statistics of the pooled client.
func (c *Client) Stats() *DBStats {
	stats := c.pool.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

// Close releases both handles.
func (c *Client) Close() error {
	var errs []error
	if c.poolDB != nil && c.poolDB != c.db {
		errs = append(errs, c.poolDB.Close())
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	err := errors.Join(errs...)
	if c.logger != nil {
		if err != nil {
			c.logger.Error("Failed to close database client", "error", err)
		} else {
			c.logger.Info("Database client closed")
		}
	}
	return err
}
