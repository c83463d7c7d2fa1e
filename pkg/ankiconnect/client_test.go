package ankiconnect

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVersion(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"result": 6, "error": null}`))
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL})
	version, err := client.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version != 6 {
		t.Errorf("version = %d, want 6", version)
	}

	var req map[string]any
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("request body is not JSON: %q", body)
	}
	if req["action"] != "version" {
		t.Errorf("action = %v, want version", req["action"])
	}
	if req["version"] != float64(6) {
		t.Errorf("version field = %v, want 6", req["version"])
	}
	if _, ok := req["params"]; ok {
		t.Error("version request must omit params")
	}
}

func TestAddNotesWireFormat(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		body, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"result": [1496198395707, null], "error": null}`))
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL})
	notes := []Note{
		{
			DeckName:  "Certs",
			ModelName: "Basic",
			Fields:    Fields{Front: "f1", Back: "b1"},
			Tags:      []string{"examdeck"},
		},
		{
			DeckName:  "Certs",
			ModelName: "Basic",
			Fields:    Fields{Front: "f2", Back: "b2"},
			Tags:      []string{"examdeck"},
		},
	}

	ids, err := client.AddNotes(context.Background(), notes)
	if err != nil {
		t.Fatalf("AddNotes: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want one entry per note", ids)
	}
	if ids[0] == nil || *ids[0] != 1496198395707 {
		t.Errorf("first id = %v, want 1496198395707", ids[0])
	}
	if ids[1] != nil {
		t.Errorf("refused note must map to nil, got %v", *ids[1])
	}

	var req struct {
		Action  string `json:"action"`
		Version int    `json:"version"`
		Params  struct {
			Notes []struct {
				DeckName  string            `json:"deckName"`
				ModelName string            `json:"modelName"`
				Fields    map[string]string `json:"fields"`
				Tags      []string          `json:"tags"`
			} `json:"notes"`
		} `json:"params"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("request body is not JSON: %q", body)
	}
	if req.Action != "addNotes" || req.Version != 6 {
		t.Errorf("envelope = %s/%d, want addNotes/6", req.Action, req.Version)
	}
	if len(req.Params.Notes) != 2 {
		t.Fatalf("sent %d notes, want 2", len(req.Params.Notes))
	}
	note := req.Params.Notes[0]
	if note.DeckName != "Certs" || note.ModelName != "Basic" {
		t.Errorf("note identity = %q/%q", note.DeckName, note.ModelName)
	}
	// Anki's Basic model requires exactly these field names.
	if note.Fields["Front"] != "f1" || note.Fields["Back"] != "b1" {
		t.Errorf("fields = %v", note.Fields)
	}
}

func TestRejectedRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": null, "error": "deck was not found: Missing"}`))
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL})
	_, err := client.AddNotes(context.Background(), []Note{{}})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Code != CodeRejected {
		t.Errorf("code = %q, want %q", apiErr.Code, CodeRejected)
	}
	if apiErr.Message != "deck was not found: Missing" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestBadStatusCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL})
	_, err := client.Version(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Code != CodeBadResponse {
		t.Errorf("code = %q, want %q", apiErr.Code, CodeBadResponse)
	}
}

func TestConnectFailed(t *testing.T) {
	// Nothing listens here.
	client := NewClient(Config{URL: "http://127.0.0.1:1", Timeout: 1})
	_, err := client.Version(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Code != CodeConnectFailed {
		t.Errorf("code = %q, want %q", apiErr.Code, CodeConnectFailed)
	}
}

func TestMalformedResultPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": "six", "error": null}`))
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL})
	_, err := client.Version(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Code != CodeBadResponse {
		t.Errorf("code = %q, want %q", apiErr.Code, CodeBadResponse)
	}
}
