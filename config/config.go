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

// Package config loads process configuration from .env files, an optional
// YAML file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tomoncle/acquisitions/database"
	"gopkg.in/yaml.v3"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	Topology        string        `yaml:"topology"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	SlowQueryTime   time.Duration `yaml:"slow_query_time"`
	EnableQueryLog  bool          `yaml:"enable_query_log"`
	PingOnStartup   bool          `yaml:"ping_on_startup"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	FileEnabled bool   `yaml:"file_enabled"`
	FilePath    string `yaml:"file_path"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days"`
}

type Config struct {
	Mode     Mode           `yaml:"mode"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	db := database.DefaultConnectionConfig()
	return &Config{
		Mode: ModeProduction,
		Server: ServerConfig{
			Port:            3000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Topology:        string(database.TopologyAuto),
			MaxOpenConns:    db.MaxOpenConns,
			MaxIdleConns:    db.MaxIdleConns,
			ConnMaxLifetime: db.ConnMaxLifetime,
			FetchTimeout:    db.FetchTimeout,
			SlowQueryTime:   db.SlowQueryTime,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			FilePath:   "logs/acquisitions.log",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load reads the given .env files (default ".env") into the process
// environment without overriding variables that are already set, then
// builds the configuration from the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return LoadFromLookup(os.LookupEnv)
}

// LoadFromLookup builds the configuration from defaults, the YAML file named
// by CONFIG_FILE and the variables visible through lookup.
func LoadFromLookup(lookup LookupFunc) (*Config, error) {
	cfg := Default()
	if path, ok := lookup("CONFIG_FILE"); ok && path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup LookupFunc) error {
	env := envReader{lookup: lookup}

	if v, ok := env.raw("NODE_ENV"); ok {
		c.Mode = Mode(v)
	}
	if v, ok := env.str("HOST"); ok {
		c.Server.Host = v
	}
	env.int("PORT", &c.Server.Port)

	if v, ok := env.raw("DATABASE_URL"); ok {
		c.Database.URL = v
	}
	if v, ok := env.str("DB_TOPOLOGY"); ok {
		c.Database.Topology = v
	}
	env.int("DB_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	env.int("DB_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)
	env.seconds("DB_CONN_MAX_LIFETIME", &c.Database.ConnMaxLifetime)
	env.seconds("DB_FETCH_TIMEOUT", &c.Database.FetchTimeout)
	env.seconds("DB_SLOW_QUERY_TIME", &c.Database.SlowQueryTime)
	env.bool("DB_ENABLE_QUERY_LOG", &c.Database.EnableQueryLog)
	env.bool("DB_PING_ON_STARTUP", &c.Database.PingOnStartup)

	if v, ok := env.str("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := env.str("CONSOLE_LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	env.bool("FILE_LOG_ENABLED", &c.Log.FileEnabled)
	if v, ok := env.str("LOG_FILE"); ok {
		c.Log.FilePath = v
	}

	return errors.Join(env.errs...)
}

// Validate checks values that cannot be deferred to the libraries. An empty
// DATABASE_URL is reported by the database factory instead.
func (c *Config) Validate() error {
	if c.Mode == "" {
		return fmt.Errorf("mode cannot be empty")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if _, err := database.ParseTopology(c.Database.Topology); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, expected text or json", c.Log.Format)
	}
	return nil
}

// ConnectionConfig maps the database section onto the client factory input.
func (c *Config) ConnectionConfig() (*database.ConnectionConfig, error) {
	topology, err := database.ParseTopology(c.Database.Topology)
	if err != nil {
		return nil, err
	}
	cc := database.DefaultConnectionConfig()
	cc.URL = c.Database.URL
	cc.Environment = c.Mode.String()
	cc.Topology = topology
	cc.MaxOpenConns = c.Database.MaxOpenConns
	cc.MaxIdleConns = c.Database.MaxIdleConns
	cc.ConnMaxLifetime = c.Database.ConnMaxLifetime
	cc.FetchTimeout = c.Database.FetchTimeout
	cc.SlowQueryTime = c.Database.SlowQueryTime
	cc.EnableQueryLog = c.Database.EnableQueryLog
	return cc, nil
}

type envReader struct {
	lookup LookupFunc
	errs   []error
}

// raw returns the value as set. Values compared literally, such as the
// mode, must not be normalized.
func (r *envReader) raw(key string) (string, bool) {
	v, ok := r.lookup(key)
	return v, ok && v != ""
}

func (r *envReader) str(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *envReader) int(key string, dst *int) {
	v, ok := r.str(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return
	}
	*dst = n
}

func (r *envReader) seconds(key string, dst *time.Duration) {
	var n int
	before := len(r.errs)
	if _, ok := r.str(key); !ok {
		return
	}
	r.int(key, &n)
	if len(r.errs) == before {
		*dst = time.Duration(n) * time.Second
	}
}

func (r *envReader) bool(key string, dst *bool) {
	v, ok := r.str(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return
	}
	*dst = b
}
