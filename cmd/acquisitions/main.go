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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tomoncle/acquisitions"
	"github.com/tomoncle/acquisitions/config"
	"github.com/tomoncle/acquisitions/utils"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	envFiles  []string
	addr      string
	verbosity int
)

// log is created after the logging configuration is applied.
var log *logrus.Logger

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address host:port (overrides HOST and PORT)")

	rootCmd := &cobra.Command{
		Use:          "acquisitions",
		Short:        "acquisitions - HTTP service with a serverless Postgres client",
		SilenceUsage: true,
		RunE:         runServe,
	}
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "dbcheck",
		Short: "Connect to the database and print a health report",
		RunE:  runDBCheck,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "acquisitions %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})
	return rootCmd
}

// loadConfig reads configuration and applies its logging section. The
// returned closer releases the log file, if any.
func loadConfig() (*config.Config, io.Closer, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, nil, err
	}
	if addr != "" {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --addr %q: %w", addr, err)
		}
		n, err := strconv.Atoi(port)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --addr port %q: %w", port, err)
		}
		cfg.Server.Host, cfg.Server.Port = host, n
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}

	level := cfg.Log.Level
	switch {
	case verbosity >= 2:
		level = "trace"
	case verbosity == 1:
		level = "debug"
	}
	utils.ConfigureLogLevel(level)
	utils.ConfigureConsoleLogFormat(cfg.Log.Format)

	var closer io.Closer = nopCloser{}
	if cfg.Log.FileEnabled {
		opts := utils.DefaultFileLogOptions()
		opts.Path = cfg.Log.FilePath
		opts.MaxSizeMB = cfg.Log.MaxSizeMB
		opts.MaxBackups = cfg.Log.MaxBackups
		opts.MaxAgeDays = cfg.Log.MaxAgeDays
		c, err := utils.ConfigureFileLog(opts)
		if err != nil {
			return nil, nil, err
		}
		closer = c
	}
	log = utils.NewLogger("MAIN")
	return cfg, closer, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logFile, err := loadConfig()
	if err != nil {
		return err
	}
	defer logFile.Close()

	app, err := acquisitions.New(cfg)
	if err != nil {
		log.WithError(err).Error("Failed to initialize application")
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.WithError(err).Warn("Failed to close database client")
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.WithField("signal", sig.String()).Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	log.WithFields(logrus.Fields{
		"mode":        cfg.Mode.String(),
		"development": cfg.Mode.IsDevelopment(),
	}).Info("Starting acquisitions")
	if err := app.Run(ctx); err != nil {
		log.WithError(err).Error("Server stopped with error")
		return err
	}
	log.Info("Shutdown complete")
	return nil
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	cfg, logFile, err := loadConfig()
	if err != nil {
		return err
	}
	defer logFile.Close()

	app, err := acquisitions.New(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	status := app.Client().HealthCheck(ctx)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		return err
	}
	if !status.Healthy {
		return fmt.Errorf("database unhealthy: %s", status.LastError)
	}
	return nil
}
