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
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// ClientFactory builds database clients from connection configuration.
type ClientFactory struct {
	logger Logger
}

// NewClientFactory returns a factory using the package logger.
func NewClientFactory() *ClientFactory {
	return &ClientFactory{logger: GetLogger()}
}

// NewClient builds a client with the default factory.
func NewClient(cfg *ConnectionConfig) (*Client, error) {
	return NewClientFactory().Create(cfg)
}

func (f *ClientFactory) SetLogger(logger Logger) {
	f.logger = logger
}

// Create validates cfg, applies development transport overrides and opens the
// query client, the ORM wrapper and the pooled client. cfg itself is not
// modified; the effective configuration is available from Client.Config.
// No connection is attempted.
func (f *ClientFactory) Create(cfg *ConnectionConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	effective := *cfg
	if effective.Topology == "" {
		effective.Topology = TopologyAuto
	}

	dialect, err := dialectOf(effective.URL)
	if err != nil {
		return nil, err
	}

	var client *Client
	switch dialect {
	case dialectPostgres:
		client, err = f.createPostgres(&effective)
	case dialectSQLite:
		client, err = f.createSQLite(&effective)
	case dialectMySQL:
		client, err = f.createMySQL(&effective)
	}
	if err != nil {
		return nil, err
	}

	f.logger.Info("Database client created",
		"dialect", client.dialect,
		"url", redactConnectionString(effective.URL),
		"environment", effective.Environment,
	)
	return client, nil
}

func (f *ClientFactory) createPostgres(cfg *ConnectionConfig) (*Client, error) {
	if _, err := pq.ParseURL(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid postgres connection string: %w", err)
	}

	if ApplyLocalOverrides(cfg) {
		f.logger.Info("Using local Neon proxy",
			"topology", cfg.Topology,
			"fetch_endpoint", cfg.Transport.FetchEndpoint,
		)
	}

	endpoint, err := cfg.Transport.ResolveFetchEndpoint(cfg.URL)
	if err != nil {
		return nil, err
	}
	fetch := NewFetchConnector(cfg.URL, endpoint, newFetchClient(cfg.FetchTimeout, f.logger))
	sqlDB := sql.OpenDB(fetch)

	var pool *sql.DB
	if cfg.Transport.PoolQueryViaFetch {
		pool = sql.OpenDB(fetch)
	} else {
		dsn, err := cfg.Transport.pooledDSN(cfg.URL)
		if err != nil {
			return nil, err
		}
		connector, err := pq.NewConnector(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid postgres connection string: %w", err)
		}
		pool = sql.OpenDB(connector)
	}
	configurePool(sqlDB, cfg)
	configurePool(pool, cfg)

	c := &Client{
		config:   *cfg,
		dialect:  dialectPostgres,
		endpoint: endpoint,
		sqlDB:    sqlDB,
		db:       bun.NewDB(sqlDB, pgdialect.New()),
		pool:     pool,
		poolDB:   bun.NewDB(pool, pgdialect.New()),
		logger:   f.logger,
	}
	f.addQueryHooks(c.db, cfg)
	f.addQueryHooks(c.poolDB, cfg)
	return c, nil
}

func (f *ClientFactory) createSQLite(cfg *ConnectionConfig) (*Client, error) {
	dsn := sqliteDSN(cfg.URL)
	sqlDB, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	configurePool(sqlDB, cfg)
	if strings.Contains(dsn, ":memory:") {
		// Every connection to :memory: is a separate database.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
	}

	db := bun.NewDB(sqlDB, sqlitedialect.New())
	f.addQueryHooks(db, cfg)
	return &Client{
		config:  *cfg,
		dialect: dialectSQLite,
		sqlDB:   sqlDB,
		db:      db,
		pool:    sqlDB,
		poolDB:  db,
		logger:  f.logger,
	}, nil
}

func (f *ClientFactory) createMySQL(cfg *ConnectionConfig) (*Client, error) {
	mcfg, err := mysqlConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(mcfg)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql connection string: %w", err)
	}
	sqlDB := sql.OpenDB(connector)
	configurePool(sqlDB, cfg)

	db := bun.NewDB(sqlDB, mysqldialect.New())
	f.addQueryHooks(db, cfg)
	return &Client{
		config:  *cfg,
		dialect: dialectMySQL,
		sqlDB:   sqlDB,
		db:      db,
		pool:    sqlDB,
		poolDB:  db,
		logger:  f.logger,
	}, nil
}

func (f *ClientFactory) addQueryHooks(db *bun.DB, cfg *ConnectionConfig) {
	if cfg.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	if cfg.SlowQueryTime > 0 {
		db.AddQueryHook(&SlowQueryHook{Threshold: cfg.SlowQueryTime, Logger: f.logger})
	}
}

func configurePool(db *sql.DB, cfg *ConnectionConfig) {
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}
