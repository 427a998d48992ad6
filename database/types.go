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
	"fmt"
	"strings"
	"time"
)

// EnvDevelopment is the only environment mode that rewrites transport
// settings for a local Neon proxy.
const EnvDevelopment = "development"

// Topology names where the database endpoint lives relative to the process.
type Topology string

const (
	// TopologyAuto infers container or host from the connection string.
	TopologyAuto Topology = "auto"
	// TopologyContainer targets the neon-local proxy on the compose network.
	TopologyContainer Topology = "container"
	// TopologyHost targets a neon-local proxy published on localhost.
	TopologyHost Topology = "host"
	// TopologyRemote keeps library defaults even in development.
	TopologyRemote Topology = "remote"
)

// ParseTopology accepts the topology names case-insensitively. The empty
// string is TopologyAuto.
func ParseTopology(s string) (Topology, error) {
	switch t := Topology(strings.ToLower(strings.TrimSpace(s))); t {
	case "", TopologyAuto:
		return TopologyAuto, nil
	case TopologyContainer, TopologyHost, TopologyRemote:
		return t, nil
	default:
		return "", fmt.Errorf("unknown database topology %q, expected one of auto, container, host, remote", s)
	}
}

func (t Topology) String() string {
	if t == "" {
		return string(TopologyAuto)
	}
	return string(t)
}

// TransportConfig holds the serverless client transport settings.
type TransportConfig struct {
	// FetchEndpoint is the URL HTTP queries are posted to. Empty means
	// https://<connection host>/sql.
	FetchEndpoint string `json:"fetch_endpoint" yaml:"fetch_endpoint"`
	// UseSecureWebSocket selects TLS for persistent connections.
	UseSecureWebSocket bool `json:"use_secure_websocket" yaml:"use_secure_websocket"`
	// PoolQueryViaFetch routes pooled queries through HTTP fetch instead of
	// persistent connections.
	PoolQueryViaFetch bool `json:"pool_query_via_fetch" yaml:"pool_query_via_fetch"`
}

// DefaultTransportConfig returns the client library defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		FetchEndpoint:      "",
		UseSecureWebSocket: true,
		PoolQueryViaFetch:  false,
	}
}

// ConnectionConfig describes how to build the database client.
type ConnectionConfig struct {
	URL             string          `json:"url" yaml:"url"`
	Environment     string          `json:"environment" yaml:"environment"`
	Topology        Topology        `json:"topology" yaml:"topology"`
	Transport       TransportConfig `json:"transport" yaml:"transport"`
	MaxIdleConns    int             `json:"max_idle_conns" yaml:"max_idle_conns"`
	MaxOpenConns    int             `json:"max_open_conns" yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration   `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration   `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	FetchTimeout    time.Duration   `json:"fetch_timeout" yaml:"fetch_timeout"`
	EnableQueryLog  bool            `json:"enable_query_log" yaml:"enable_query_log"`
	SlowQueryTime   time.Duration   `json:"slow_query_time" yaml:"slow_query_time"`
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Topology:        TopologyAuto,
		Transport:       DefaultTransportConfig(),
		MaxIdleConns:    5,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		FetchTimeout:    30 * time.Second,
		SlowQueryTime:   2 * time.Second,
	}
}

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Dialect       string        `json:"dialect"`
	Endpoint      string        `json:"endpoint,omitempty"`
	ResponseTime  time.Duration `json:"response_time"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
	Pool          *DBStats      `json:"pool,omitempty"`
}

// DBStats mirrors database/sql stats of the pooled client.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}
