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
	"net/http"
	"time"
)

type traceTransport struct {
	base   http.RoundTripper
	logger Logger
}

// newFetchClient returns the HTTP client used by the fetch transport. Each
// round trip is logged at debug level without the connection string header.
func newFetchClient(timeout time.Duration, logger Logger) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &traceTransport{base: http.DefaultTransport, logger: logger},
	}
}

func (t *traceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if t.logger == nil {
		return resp, err
	}
	if err != nil {
		t.logger.Debug("Fetch request failed", "endpoint", req.URL.Redacted(), "duration", time.Since(start), "error", err)
		return nil, err
	}
	t.logger.Debug("Fetch request", "endpoint", req.URL.Redacted(), "status", resp.StatusCode, "duration", time.Since(start))
	return resp, nil
}
