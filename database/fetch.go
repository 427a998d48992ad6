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
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// FetchDriverName is the database/sql driver name of the Neon HTTP transport.
const FetchDriverName = "neonhttp"

// ErrTxUnsupported is returned by Begin: every HTTP query is its own
// implicit transaction.
var ErrTxUnsupported = errors.New("neon http transport does not support interactive transactions")

func init() {
	sql.Register(FetchDriverName, fetchDriver{})
}

// FetchError is a query failure reported by the HTTP SQL endpoint.
type FetchError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Code       string `json:"code"`
	Severity   string `json:"severity"`
	Detail     string `json:"detail"`
	Hint       string `json:"hint"`
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString("neon http: ")
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(http.StatusText(e.StatusCode))
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (SQLSTATE %s)", e.Code)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " [HTTP %d]", e.StatusCode)
	}
	return b.String()
}

type fetchDriver struct{}

// Open connects using the default endpoint derived from the connection string.
func (d fetchDriver) Open(name string) (driver.Conn, error) {
	c, err := d.OpenConnector(name)
	if err != nil {
		return nil, err
	}
	return c.Connect(context.Background())
}

func (fetchDriver) OpenConnector(name string) (driver.Connector, error) {
	endpoint, err := DefaultTransportConfig().ResolveFetchEndpoint(name)
	if err != nil {
		return nil, err
	}
	return NewFetchConnector(name, endpoint, nil), nil
}

// FetchConnector opens connections that post each query to an HTTP SQL
// endpoint. Connections hold no network state.
type FetchConnector struct {
	connectionString string
	endpoint         string
	client           *http.Client
}

// NewFetchConnector returns a connector for sql.OpenDB. A nil client uses
// http.DefaultClient.
func NewFetchConnector(connectionString, endpoint string, client *http.Client) *FetchConnector {
	if client == nil {
		client = http.DefaultClient
	}
	return &FetchConnector{
		connectionString: connectionString,
		endpoint:         endpoint,
		client:           client,
	}
}

// Endpoint returns the URL queries are posted to.
func (c *FetchConnector) Endpoint() string { return c.endpoint }

func (c *FetchConnector) Connect(context.Context) (driver.Conn, error) {
	return &fetchConn{connector: c}, nil
}

func (c *FetchConnector) Driver() driver.Driver { return fetchDriver{} }

type fetchRequest struct {
	Query  string        `json:"query"`
	Params []interface{} `json:"params"`
}

type fetchField struct {
	Name       string `json:"name"`
	DataTypeID int    `json:"dataTypeID"`
}

type fetchResponse struct {
	Command  string          `json:"command"`
	RowCount *int64          `json:"rowCount"`
	Fields   []fetchField    `json:"fields"`
	Rows     [][]interface{} `json:"rows"`
}

type fetchConn struct {
	connector *FetchConnector
}

var (
	_ driver.Conn             = (*fetchConn)(nil)
	_ driver.ConnBeginTx      = (*fetchConn)(nil)
	_ driver.QueryerContext   = (*fetchConn)(nil)
	_ driver.ExecerContext    = (*fetchConn)(nil)
	_ driver.Pinger           = (*fetchConn)(nil)
	_ driver.StmtQueryContext = (*fetchStmt)(nil)
	_ driver.StmtExecContext  = (*fetchStmt)(nil)
)

func (c *fetchConn) Prepare(query string) (driver.Stmt, error) {
	return &fetchStmt{conn: c, query: query}, nil
}

func (c *fetchConn) PrepareContext(_ context.Context, query string) (driver.Stmt, error) {
	return c.Prepare(query)
}

func (c *fetchConn) Close() error { return nil }

func (c *fetchConn) Begin() (driver.Tx, error) { return nil, ErrTxUnsupported }

func (c *fetchConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return nil, ErrTxUnsupported
}

func (c *fetchConn) Ping(ctx context.Context) error {
	_, err := c.roundTrip(ctx, "SELECT 1", nil)
	return err
}

func (c *fetchConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	resp, err := c.roundTrip(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return newFetchRows(resp), nil
}

func (c *fetchConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	resp, err := c.roundTrip(ctx, query, args)
	if err != nil {
		return nil, err
	}
	var affected int64
	if resp.RowCount != nil {
		affected = *resp.RowCount
	}
	return driver.RowsAffected(affected), nil
}

func (c *fetchConn) roundTrip(ctx context.Context, query string, args []driver.NamedValue) (*fetchResponse, error) {
	params, err := encodeParams(args)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(fetchRequest{Query: query, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.connector.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Neon-Connection-String", c.connector.connectionString)
	req.Header.Set("Neon-Raw-Text-Output", "true")
	req.Header.Set("Neon-Array-Mode", "true")

	res, err := c.connector.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch request failed: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read fetch response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		fe := &FetchError{StatusCode: res.StatusCode}
		if jsonErr := json.Unmarshal(data, fe); jsonErr != nil || fe.Message == "" {
			fe.Message = strings.TrimSpace(string(data))
		}
		return nil, fe
	}

	var out fetchResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode fetch response: %w", err)
	}
	return &out, nil
}

// encodeParams renders arguments in Postgres text format.
func encodeParams(args []driver.NamedValue) ([]interface{}, error) {
	params := make([]interface{}, len(args))
	for _, a := range args {
		if a.Ordinal < 1 || a.Ordinal > len(args) {
			return nil, fmt.Errorf("invalid argument ordinal %d", a.Ordinal)
		}
		var p interface{}
		switch v := a.Value.(type) {
		case nil:
			p = nil
		case string:
			p = v
		case []byte:
			p = `\x` + hex.EncodeToString(v)
		case int64:
			p = strconv.FormatInt(v, 10)
		case float64:
			p = strconv.FormatFloat(v, 'g', -1, 64)
		case bool:
			p = strconv.FormatBool(v)
		case time.Time:
			p = v.Format(time.RFC3339Nano)
		default:
			return nil, fmt.Errorf("unsupported argument type %T", a.Value)
		}
		params[a.Ordinal-1] = p
	}
	return params, nil
}

type fetchStmt struct {
	conn  *fetchConn
	query string
}

func (s *fetchStmt) Close() error { return nil }

// NumInput is unknown; the endpoint validates placeholders.
func (s *fetchStmt) NumInput() int { return -1 }

func (s *fetchStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), namedValues(args))
}

func (s *fetchStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), namedValues(args))
}

func (s *fetchStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.conn.ExecContext(ctx, s.query, args)
}

func (s *fetchStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.conn.QueryContext(ctx, s.query, args)
}

func namedValues(args []driver.Value) []driver.NamedValue {
	out := make([]driver.NamedValue, len(args))
	for i, v := range args {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return out
}
