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
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/unrolled/secure"
)

// DefaultContentSecurityPolicy is the policy sent on every response.
const DefaultContentSecurityPolicy = "default-src 'self';base-uri 'self';font-src 'self' https: data:;" +
	"form-action 'self';frame-ancestors 'self';img-src 'self' data:;object-src 'none';" +
	"script-src 'self';script-src-attr 'none';style-src 'self' https: 'unsafe-inline';" +
	"upgrade-insecure-requests"

// SecureOptions returns the security header set applied to all responses.
func SecureOptions() secure.Options {
	return secure.Options{
		STSSeconds:                31536000,
		STSIncludeSubdomains:      true,
		ForceSTSHeader:            true,
		CustomFrameOptionsValue:   "SAMEORIGIN",
		ContentTypeNosniff:        true,
		BrowserXssFilter:          true,
		CustomBrowserXssValue:     "0",
		ContentSecurityPolicy:     DefaultContentSecurityPolicy,
		ReferrerPolicy:            "no-referrer",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
	}
}

// extraHeaders are not covered by secure.Options.
var extraHeaders = map[string]string{
	"Origin-Agent-Cluster":              "?1",
	"X-DNS-Prefetch-Control":            "off",
	"X-Download-Options":                "noopen",
	"X-Permitted-Cross-Domain-Policies": "none",
}

// SecureHeaders sets the security headers before any other handler runs, so
// unmatched routes carry them as well.
func SecureHeaders() func(http.Handler) http.Handler {
	sm := secure.New(SecureOptions())
	return func(next http.Handler) http.Handler {
		withExtras := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range extraHeaders {
				h.Set(k, v)
			}
			h.Del("X-Powered-By")
			next.ServeHTTP(w, r)
		})
		return sm.Handler(withExtras)
	}
}

// AccessLog logs one record per request after it completes.
func AccessLog(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.WithFields(logrus.Fields{
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     ww.Status(),
					"bytes":      ww.BytesWritten(),
					"duration":   time.Since(start).String(),
					"remote":     r.RemoteAddr,
					"user_agent": r.UserAgent(),
					"request_id": chimiddleware.GetReqID(r.Context()),
				}).Debug("Request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
