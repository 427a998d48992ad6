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
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "acquisitions dev") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestDBCheckSQLite(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite://:memory:")
	t.Setenv("NODE_ENV", "test")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"dbcheck", "--env-file", t.TempDir() + "/none.env"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var status struct {
		Healthy bool   `json:"healthy"`
		Dialect string `json:"dialect"`
	}
	if err := json.Unmarshal(out.Bytes(), &status); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if !status.Healthy || status.Dialect != "sqlite" {
		t.Fatalf("status = %+v", status)
	}
}

func TestServeInvalidAddr(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite://:memory:")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"serve", "--addr", "nonsense", "--env-file", t.TempDir() + "/none.env"})
	defer func() { addr = "" }()
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for invalid --addr")
	}
}
