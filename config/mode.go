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

package config

import "github.com/tomoncle/acquisitions/database"

// Mode is the environment mode read from NODE_ENV. Values other than the
// named constants are kept verbatim.
type Mode string

const (
	ModeDevelopment Mode = database.EnvDevelopment
	ModeProduction  Mode = "production"
	ModeTest        Mode = "test"
)

// IsDevelopment is an exact, case-sensitive comparison.
func (m Mode) IsDevelopment() bool { return m == ModeDevelopment }

// IsKnown reports whether m is one of the named modes.
func (m Mode) IsKnown() bool {
	switch m {
	case ModeDevelopment, ModeProduction, ModeTest:
		return true
	}
	return false
}

func (m Mode) String() string { return string(m) }
