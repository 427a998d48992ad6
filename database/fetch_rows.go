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
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"
)

// Postgres type OIDs decoded into native Go values.
const (
	oidBool        = 16
	oidBytea       = 17
	oidInt8        = 20
	oidInt2        = 21
	oidInt4        = 23
	oidOID         = 26
	oidJSON        = 114
	oidFloat4      = 700
	oidFloat8      = 701
	oidDate        = 1082
	oidTimestamp   = 1114
	oidTimestamptz = 1184
	oidJSONB       = 3802
)

var pgTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999Z07:00:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

type fetchRows struct {
	columns []string
	types   []int
	rows    [][]interface{}
	pos     int
}

func newFetchRows(resp *fetchResponse) *fetchRows {
	r := &fetchRows{
		columns: make([]string, len(resp.Fields)),
		types:   make([]int, len(resp.Fields)),
		rows:    resp.Rows,
	}
	for i, f := range resp.Fields {
		r.columns[i] = f.Name
		r.types[i] = f.DataTypeID
	}
	return r
}

func (r *fetchRows) Columns() []string { return r.columns }

func (r *fetchRows) Close() error {
	r.pos = len(r.rows)
	return nil
}

func (r *fetchRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	for i := range dest {
		if i >= len(row) {
			dest[i] = nil
			continue
		}
		oid := 0
		if i < len(r.types) {
			oid = r.types[i]
		}
		dest[i] = decodeValue(oid, row[i])
	}
	return nil
}

// ColumnTypeDatabaseTypeName reports a Postgres type name for known OIDs.
func (r *fetchRows) ColumnTypeDatabaseTypeName(index int) string {
	switch r.types[index] {
	case oidBool:
		return "BOOL"
	case oidBytea:
		return "BYTEA"
	case oidInt2:
		return "INT2"
	case oidInt4:
		return "INT4"
	case oidInt8:
		return "INT8"
	case oidFloat4:
		return "FLOAT4"
	case oidFloat8:
		return "FLOAT8"
	case oidDate:
		return "DATE"
	case oidTimestamp:
		return "TIMESTAMP"
	case oidTimestamptz:
		return "TIMESTAMPTZ"
	case oidJSON:
		return "JSON"
	case oidJSONB:
		return "JSONB"
	default:
		return ""
	}
}

// decodeValue converts a raw text cell into a driver value. Values that fail
// to parse are returned as text.
func decodeValue(oid int, raw interface{}) driver.Value {
	var s string
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		s = v
	case bool:
		return v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return b
	}

	switch oid {
	case oidBool:
		return s == "t" || s == "true"
	case oidInt2, oidInt4, oidInt8, oidOID:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case oidFloat4, oidFloat8:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case oidBytea:
		if strings.HasPrefix(s, `\x`) {
			if b, err := hex.DecodeString(s[2:]); err == nil {
				return b
			}
		}
	case oidDate, oidTimestamp, oidTimestamptz:
		for _, layout := range pgTimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	case oidJSON, oidJSONB:
		return []byte(s)
	}
	return s
}
