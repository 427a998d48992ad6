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

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/tomoncle/acquisitions/config"
	"github.com/tomoncle/acquisitions/database"
)

// Greeting is the body served on GET /.
const Greeting = "Hello, from acquisitions"

type Server struct {
	cfg    config.ServerConfig
	client *database.Client
	log    *logrus.Logger
	router chi.Router
}

// New builds the router. client may be nil when the process runs without a
// database.
func New(cfg config.ServerConfig, client *database.Client, log *logrus.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		client: client,
		log:    log,
	}
	s.setupRoutes()
	return s
}

// Handler returns the root handler including all middleware.
func (s *Server) Handler() http.Handler { return s.router }

// Client returns the shared database client.
func (s *Server) Client() *database.Client { return s.client }

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(SecureHeaders())
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(AccessLog(s.log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/", s.hello)

	s.router = r
}

// Start serves until ctx is cancelled, then shuts down within
// ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Addr()
	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutting down HTTP server")
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}
