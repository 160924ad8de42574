// Package client provides an HTTP client for the Ark daemon API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/metrics"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
)

// Client talks to a running arkd instance over its REST API.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a client for the given endpoint.
// If endpoint is empty, uses the ARK_SERVER_URL env var or defaults to
// http://localhost:8001. Timeout can be configured via ARK_CLIENT_TIMEOUT
// (default 2m to cover long direct agent executions).
func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = os.Getenv("ARK_SERVER_URL")
	}
	if endpoint == "" {
		endpoint = "http://localhost:8001"
	}
	endpoint = strings.TrimRight(endpoint, "/")

	timeout := 2 * time.Minute
	if t := os.Getenv("ARK_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// apiError is the error payload returned by the server.
type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server: %s (%s)", apiErr.Error, apiErr.Code)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// OrchestrateRequest starts a new analysis session.
type OrchestrateRequest struct {
	FilePath     string         `json:"file_path"`
	AnalysisType string         `json:"analysis_type"`
	Priority     string         `json:"priority"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
}

// Orchestrate submits a file for analysis and returns the initial
// session snapshot.
func (c *Client) Orchestrate(ctx context.Context, req OrchestrateRequest) (models.OrchestrationSession, error) {
	var snap models.OrchestrationSession
	err := c.do(ctx, http.MethodPost, "/api/orchestrate", req, &snap)
	return snap, err
}

// Session fetches the current snapshot of one session.
func (c *Client) Session(ctx context.Context, id string) (models.OrchestrationSession, error) {
	var snap models.OrchestrationSession
	err := c.do(ctx, http.MethodGet, "/api/orchestration/"+url.PathEscape(id), nil, &snap)
	return snap, err
}

// Sessions lists all known sessions, newest first.
func (c *Client) Sessions(ctx context.Context) ([]models.OrchestrationSession, error) {
	var snaps []models.OrchestrationSession
	err := c.do(ctx, http.MethodGet, "/api/orchestrations", nil, &snaps)
	return snaps, err
}

// Cancel requests cancellation of a running session.
func (c *Client) Cancel(ctx context.Context, id string) (models.OrchestrationSession, error) {
	var snap models.OrchestrationSession
	err := c.do(ctx, http.MethodDelete, "/api/orchestration/"+url.PathEscape(id), nil, &snap)
	return snap, err
}

// Stream subscribes to live snapshots of a session over a websocket.
// It invokes fn for every snapshot until the session reaches a terminal
// state, the server closes the stream, or ctx is cancelled.
func (c *Client) Stream(ctx context.Context, id string, fn func(models.OrchestrationSession)) error {
	wsURL := strings.Replace(c.endpoint, "http", "ws", 1) +
		"/api/orchestration/" + url.PathEscape(id) + "/stream"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("session %s not found", id)
		}
		return fmt.Errorf("connect to stream: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var snap models.OrchestrationSession
		if err := conn.ReadJSON(&snap); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read stream: %w", err)
		}
		fn(snap)
		if snap.Status.Terminal() {
			return nil
		}
	}
}

// AgentInfo describes one registered agent.
type AgentInfo struct {
	ID         string            `json:"id"`
	Capability models.Capability `json:"capability"`
}

// Agents lists the registered analysis agents.
func (c *Client) Agents(ctx context.Context) ([]AgentInfo, error) {
	var out []AgentInfo
	err := c.do(ctx, http.MethodGet, "/api/agents", nil, &out)
	return out, err
}

// ExecuteAgent runs a single agent directly, outside any session.
func (c *Client) ExecuteAgent(ctx context.Context, agentID, filePath string, params map[string]any) (models.AgentResult, error) {
	body := struct {
		FilePath   string         `json:"file_path"`
		Parameters map[string]any `json:"parameters,omitempty"`
	}{FilePath: filePath, Parameters: params}

	var res models.AgentResult
	err := c.do(ctx, http.MethodPost, "/api/agents/"+url.PathEscape(agentID)+"/execute", body, &res)
	return res, err
}

// GraphParams tune the correlation graph build.
type GraphParams struct {
	MinEntropy float64
	MaxNodes   int
	Filters    []string
}

// Graph fetches the correlation graph.
func (c *Client) Graph(ctx context.Context, params GraphParams) (models.Graph, error) {
	q := url.Values{}
	if params.MinEntropy > 0 {
		q.Set("min_entropy", strconv.FormatFloat(params.MinEntropy, 'f', -1, 64))
	}
	if params.MaxNodes > 0 {
		q.Set("max_nodes", strconv.Itoa(params.MaxNodes))
	}
	for _, f := range params.Filters {
		q.Add("filter", f)
	}

	path := "/api/graph/forensic"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var g models.Graph
	err := c.do(ctx, http.MethodGet, path, nil, &g)
	return g, err
}

// Search looks up artifacts matching term across the store.
func (c *Client) Search(ctx context.Context, term, kind string) (models.SearchResults, error) {
	q := url.Values{}
	q.Set("q", term)
	if kind != "" {
		q.Set("type", kind)
	}

	var res models.SearchResults
	err := c.do(ctx, http.MethodGet, "/api/graph/search?"+q.Encode(), nil, &res)
	return res, err
}

// Path returns the direct connections between two files.
func (c *Client) Path(ctx context.Context, fileA, fileB int64) ([]models.PathConnection, error) {
	path := fmt.Sprintf("/api/graph/path/%d/%d", fileA, fileB)
	var conns []models.PathConnection
	err := c.do(ctx, http.MethodGet, path, nil, &conns)
	return conns, err
}

// Stats fetches the daemon's operation metrics.
func (c *Client) Stats(ctx context.Context) (metrics.Snapshot, error) {
	var snap metrics.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, &snap)
	return snap, err
}
