// Package executor dispatches provider adaptor workflows to the OGC process
// execution service.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Inputs is the inputs object of an execution request.
type Inputs struct {
	Workspace            string  `json:"workspace"`
	ClusterPrefix        string  `json:"cluster_prefix"`
	WorkspaceBucket      string  `json:"workspace_bucket"`
	CommercialDataBucket string  `json:"commercial_data_bucket"`
	PulsarURL            string  `json:"pulsar_url"`
	ProductBundle        string  `json:"product_bundle"`
	STACKey              string  `json:"stac_key"`
	Coordinates          string  `json:"coordinates"`
	EndUsers             *string `json:"end_users,omitempty"`
	Licence              string  `json:"licence,omitempty"`
}

// Invocation is one workflow execution request.
type Invocation struct {
	// ProviderWorkspace owns the adaptor process, e.g. "airbus".
	ProviderWorkspace string `json:"provider_workspace"`
	Workflow          string `json:"workflow"`
	// Authorization is forwarded so the workflow runs as the caller.
	Authorization string `json:"authorization"`
	Inputs        Inputs `json:"inputs"`
}

// StatusError is returned when the executor answers outside 2xx.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("executor responded with %d: %s", e.Status, e.Body)
}

// Client posts execution requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// Execute requests asynchronous execution. A 2xx answer means the job was
// accepted, not that it finished; the response body is returned as is.
func (c *Client) Execute(ctx context.Context, inv Invocation) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/%s/processes/%s/execution", c.baseURL, url.PathEscape(inv.ProviderWorkspace), url.PathEscape(inv.Workflow))
	payload, err := json.Marshal(map[string]any{"inputs": inv.Inputs})
	if err != nil {
		return nil, fmt.Errorf("encode execution request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if inv.Authorization != "" {
		req.Header.Set("Authorization", inv.Authorization)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "respond-async")

	c.logger.Info("executing workflow", "workflow", inv.Workflow, "workspace", inv.Inputs.Workspace, "url", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", inv.Workflow, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read execution response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if len(bytes.TrimSpace(body)) == 0 || !json.Valid(body) {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(body), nil
}
