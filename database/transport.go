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
	"net/url"
	"strings"
)

const (
	// LocalProxyMarker in a connection string means the process runs next to
	// the neon-local container.
	LocalProxyMarker   = "neon-local"
	LocalContainerHost = "neon-local"
	LocalLoopbackHost  = "localhost"
	LocalProxyPort     = 5432
)

// LocalProxyHost returns the host of the local Neon proxy for the topology.
// It reports false when the topology keeps library defaults.
func LocalProxyHost(topology Topology, connectionString string) (string, bool) {
	switch topology {
	case TopologyContainer:
		return LocalContainerHost, true
	case TopologyHost:
		return LocalLoopbackHost, true
	case TopologyRemote:
		return "", false
	default:
		if strings.Contains(connectionString, LocalProxyMarker) {
			return LocalContainerHost, true
		}
		return LocalLoopbackHost, true
	}
}

// ApplyLocalOverrides points the transport at a local Neon proxy when the
// environment is development. Outside development cfg is left untouched.
// It reports whether the transport was rewritten.
func ApplyLocalOverrides(cfg *ConnectionConfig) bool {
	if cfg == nil || cfg.Environment != EnvDevelopment {
		return false
	}
	host, ok := LocalProxyHost(cfg.Topology, cfg.URL)
	if !ok {
		return false
	}
	cfg.Transport.FetchEndpoint = fmt.Sprintf("http://%s:%d/sql", host, LocalProxyPort)
	cfg.Transport.UseSecureWebSocket = false
	cfg.Transport.PoolQueryViaFetch = true
	return true
}

// ResolveFetchEndpoint returns the configured endpoint, or the default
// https://<host>/sql derived from the connection string.
func (t TransportConfig) ResolveFetchEndpoint(connectionString string) (string, error) {
	if t.FetchEndpoint != "" {
		return t.FetchEndpoint, nil
	}
	u, err := url.Parse(connectionString)
	if err != nil {
		return "", fmt.Errorf("invalid connection string: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("connection string has no host")
	}
	return "https://" + u.Hostname() + "/sql", nil
}

// pooledDSN applies the transport security setting to a Postgres URL used
// for persistent connections.
func (t TransportConfig) pooledDSN(connectionString string) (string, error) {
	u, err := url.Parse(connectionString)
	if err != nil {
		return "", fmt.Errorf("invalid connection string: %w", err)
	}
	q := u.Query()
	switch {
	case !t.UseSecureWebSocket:
		q.Set("sslmode", "disable")
	case q.Get("sslmode") == "":
		q.Set("sslmode", "require")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
