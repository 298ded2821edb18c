// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/meshintel/parts-engine/internal/httputil"
)

// errNotFound marks an HTTP 404 from the graph store: the database has
// no data yet, which is a normal bootstrap state.
var errNotFound = errors.New("graph store not found")

// Client runs Cypher statements against a Neo4j HTTP transaction
// endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	database   string
	username   string
	password   string
	userAgent  string
}

// record is one result row keyed by column name.
type record map[string]any

type txRequest struct {
	Statements []txStatement `json:"statements"`
}

type txStatement struct {
	Statement  string         `json:"statement"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type txResponse struct {
	Results []struct {
		Columns []string `json:"columns"`
		Data    []struct {
			Row []any `json:"row"`
		} `json:"data"`
	} `json:"results"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Run executes one Cypher statement in an auto-commit transaction and
// returns the rows keyed by column name.
func (c *Client) Run(ctx context.Context, cypher string, params map[string]any) ([]record, error) {
	payload, err := json.Marshal(txRequest{
		Statements: []txStatement{{Statement: cypher, Parameters: params}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding cypher request: %w", err)
	}

	url := fmt.Sprintf("%s/db/%s/tx/commit", strings.TrimRight(c.endpoint, "/"), c.database)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating cypher request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return nil, fmt.Errorf("graph store request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph store returned HTTP %d", resp.StatusCode)
	}

	var tr txResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("parsing graph response: %w", err)
	}
	if len(tr.Errors) > 0 {
		return nil, fmt.Errorf("cypher error %s: %s", tr.Errors[0].Code, tr.Errors[0].Message)
	}
	if len(tr.Results) == 0 {
		return nil, nil
	}

	result := tr.Results[0]
	records := make([]record, 0, len(result.Data))
	for _, d := range result.Data {
		rec := make(record, len(result.Columns))
		for i, col := range result.Columns {
			if i < len(d.Row) {
				rec[col] = d.Row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// isUnavailable reports whether err means the graph store is not
// reachable or not initialized. Both are valid operating states for a
// tenant that has not set up graph search, so callers treat them as
// empty results.
func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errNotFound) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "no such host")
}

// --- record accessors ---

func (r record) str(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

func (r record) num(key string) float64 {
	if v, ok := r[key].(float64); ok {
		return v
	}
	return 0
}

func (r record) strs(key string) []string {
	raw, ok := r[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (r record) edges(key string) []edge {
	raw, ok := r[key].([]any)
	if !ok {
		return nil
	}
	var out []edge
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		e := edge{}
		if s, ok := m["part_number"].(string); ok {
			e.partNumber = s
		}
		if s, ok := m["relation"].(string); ok {
			e.relation = s
		}
		if e.partNumber != "" {
			out = append(out, e)
		}
	}
	return out
}

type edge struct {
	partNumber string
	relation   string
}
