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

package acquisitions

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/tomoncle/acquisitions/config"
	"github.com/tomoncle/acquisitions/database"
	"github.com/tomoncle/acquisitions/server"
	"github.com/tomoncle/acquisitions/utils"
)

// App owns the process-wide database client and the HTTP server built
// around it.
type App struct {
	cfg    *config.Config
	client *database.Client
	server *server.Server
	log    *logrus.Logger
}

// New creates the database client once and injects it into the server.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	log := utils.NewLogger("APP")
	switch {
	case cfg.Mode.IsDevelopment():
		log.Debug("Development mode, local database endpoint overrides enabled")
	case !cfg.Mode.IsKnown():
		log.WithField("mode", cfg.Mode.String()).Warn("Unrecognized mode, local database endpoints stay disabled")
	}

	connCfg, err := cfg.ConnectionConfig()
	if err != nil {
		return nil, err
	}

	database.InitLogger(database.NewLogrusLogger(utils.NewLogger("DATABASE")))
	client, err := database.NewClientFactory().Create(connCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database client: %w", err)
	}

	return &App{
		cfg:    cfg,
		client: client,
		server: server.New(cfg.Server, client, utils.NewLogger("SERVER")),
		log:    log,
	}, nil
}

func (a *App) Client() *database.Client { return a.client }

func (a *App) Handler() http.Handler { return a.server.Handler() }

// Run serves until ctx is cancelled. With Database.PingOnStartup set, an
// unreachable database aborts startup.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Database.PingOnStartup {
		if err := a.client.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		a.log.WithField("dialect", a.client.Dialect()).Info("Database reachable")
	}
	return a.server.Start(ctx)
}

func (a *App) Close() error {
	return a.client.Close()
}
