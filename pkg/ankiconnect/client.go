// Package ankiconnect is a minimal client for the AnkiConnect add-on
// HTTP API (version 6).
package ankiconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const apiVersion = 6

// Client talks to a single AnkiConnect endpoint.
type Client struct {
	config *Config
	client *http.Client
}

// NewClient creates a client with the given configuration, filling in
// defaults for unset values.
func NewClient(config Config) *Client {
	if config.URL == "" {
		config.URL = "http://127.0.0.1:8765"
	}
	if config.Timeout == 0 {
		config.Timeout = 30
	}

	return &Client{
		config: &config,
		client: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}
}

type request struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// Version performs the liveness check and returns the API version the
// target reports.
func (c *Client) Version(ctx context.Context) (int, error) {
	raw, err := c.invoke(ctx, request{Action: "version", Version: apiVersion})
	if err != nil {
		return 0, err
	}
	var version int
	if err := json.Unmarshal(raw, &version); err != nil {
		return 0, &Error{
			Code:    CodeBadResponse,
			Message: "version result is not a number",
			Details: err.Error(),
		}
	}
	return version, nil
}

// AddNotes submits all notes in a single batch and returns the per-note
// result list unchanged: one note ID per note, nil where Anki refused
// the individual note.
func (c *Client) AddNotes(ctx context.Context, notes []Note) ([]*int64, error) {
	raw, err := c.invoke(ctx, request{
		Action:  "addNotes",
		Version: apiVersion,
		Params:  map[string]any{"notes": notes},
	})
	if err != nil {
		return nil, err
	}
	var ids []*int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, &Error{
			Code:    CodeBadResponse,
			Message: "addNotes result is not a note ID list",
			Details: err.Error(),
		}
	}
	return ids, nil
}

func (c *Client) invoke(ctx context.Context, req request) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{
			Code:    CodeMarshalError,
			Message: fmt.Sprintf("marshal %s request", req.Action),
			Details: err.Error(),
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{
			Code:    CodeConnectFailed,
			Message: fmt.Sprintf("create %s request", req.Action),
			Details: err.Error(),
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &Error{
			Code:    CodeConnectFailed,
			Message: fmt.Sprintf("%s call failed", req.Action),
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &Error{
			Code:    CodeBadResponse,
			Message: fmt.Sprintf("%s returned HTTP %d", req.Action, resp.StatusCode),
			Details: string(data),
		}
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &Error{
			Code:    CodeBadResponse,
			Message: fmt.Sprintf("decode %s response", req.Action),
			Details: err.Error(),
		}
	}
	if parsed.Error != nil {
		return nil, &Error{
			Code:    CodeRejected,
			Message: *parsed.Error,
		}
	}
	return parsed.Result, nil
}
