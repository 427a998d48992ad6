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
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/tomoncle/acquisitions/config"
)

func newTestServer(t *testing.T) (*Server, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return New(config.Default().Server, nil, log), hook
}

func infoMessages(hook *test.Hook) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.InfoLevel {
			out = append(out, e.Message)
		}
	}
	return out
}

func TestHello(t *testing.T) {
	s, hook := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/?x=1&name=abc", nil)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Custom", "whatever")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); body != Greeting {
		t.Fatalf("body = %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Fatalf("content type = %q", ct)
	}
	infos := infoMessages(hook)
	if len(infos) != 1 || infos[0] != Greeting {
		t.Fatalf("info records = %v", infos)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/", "/missing", "/a/b/c"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		want := map[string]string{
			"Strict-Transport-Security":    "max-age=31536000; includeSubDomains",
			"X-Frame-Options":              "SAMEORIGIN",
			"X-Content-Type-Options":       "nosniff",
			"X-Xss-Protection":             "0",
			"Referrer-Policy":              "no-referrer",
			"Content-Security-Policy":      DefaultContentSecurityPolicy,
			"Cross-Origin-Opener-Policy":   "same-origin",
			"Cross-Origin-Resource-Policy": "same-origin",
			"X-Dns-Prefetch-Control":       "off",
			"Origin-Agent-Cluster":         "?1",
		}
		for k, v := range want {
			if got := rec.Header().Get(k); got != v {
				t.Errorf("%s: %s = %q, want %q", path, k, got, v)
			}
		}
		if rec.Header().Get("X-Powered-By") != "" {
			t.Errorf("%s: X-Powered-By must not be set", path)
		}
	}
}

func TestUnmatchedRoutes(t *testing.T) {
	s, hook := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET /users status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST / status = %d", rec.Code)
	}
	if len(infoMessages(hook)) != 0 {
		t.Fatal("greeting must not be logged for unmatched requests")
	}
}

func TestAccessLog(t *testing.T) {
	s, hook := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Message != "Request" {
			continue
		}
		found = true
		if e.Data["status"] != http.StatusNotFound || e.Data["path"] != "/missing" {
			t.Fatalf("access log fields = %v", e.Data)
		}
		if e.Data["request_id"] == "" {
			t.Fatal("request id missing")
		}
	}
	if !found {
		t.Fatal("no access log record")
	}
}

func TestStartAndShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()

	log, _ := test.NewNullLogger()
	cfg := config.Default().Server
	cfg.Host = "127.0.0.1"
	cfg.Port = port
	cfg.ShutdownTimeout = 2 * time.Second
	s := New(cfg, nil, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server did not start: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != Greeting {
		t.Fatalf("body = %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
