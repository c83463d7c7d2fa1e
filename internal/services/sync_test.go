package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"examdeck/internal/services"
	"examdeck/pkg/ankiconnect"
)

func testNotes() []ankiconnect.Note {
	return []ankiconnect.Note{
		{
			DeckName:  "Certs",
			ModelName: "Basic",
			Fields:    ankiconnect.Fields{Front: "f1", Back: "b1"},
			Tags:      []string{"examdeck"},
		},
		{
			DeckName:  "Certs",
			ModelName: "Basic",
			Fields:    ankiconnect.Fields{Front: "f2", Back: "b2"},
			Tags:      []string{"examdeck"},
		},
	}
}

func readRecovery(t *testing.T, path string) []ankiconnect.Note {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read recovery file: %v", err)
	}
	var notes []ankiconnect.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		t.Fatalf("recovery file is not a JSON note array: %v", err)
	}
	return notes
}

func TestSyncPushSuccess(t *testing.T) {
	var actions []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Action string `json:"action"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		actions = append(actions, req.Action)
		switch req.Action {
		case "version":
			w.Write([]byte(`{"result": 6, "error": null}`))
		case "addNotes":
			w.Write([]byte(`{"result": [11, null], "error": null}`))
		}
	}))
	defer server.Close()

	recovery := filepath.Join(t.TempDir(), "recovery.json")
	client := ankiconnect.NewClient(ankiconnect.Config{URL: server.URL})
	sync := services.NewSyncService(client, recovery, nil)

	ids, err := sync.Push(context.Background(), testNotes())
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(ids) != 2 || ids[0] == nil || *ids[0] != 11 || ids[1] != nil {
		t.Errorf("ids = %v", ids)
	}
	if len(actions) != 2 || actions[0] != "version" || actions[1] != "addNotes" {
		t.Errorf("actions = %v, want liveness check before submit", actions)
	}
	if _, err := os.Stat(recovery); !os.IsNotExist(err) {
		t.Error("successful push must not write a recovery file")
	}
}

func TestSyncPushUnreachableTarget(t *testing.T) {
	var addNotesSeen bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Action string `json:"action"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Action == "addNotes" {
			addNotesSeen = true
		}
		http.Error(w, "anki is down", http.StatusBadGateway)
	}))
	defer server.Close()

	recovery := filepath.Join(t.TempDir(), "recovery.json")
	client := ankiconnect.NewClient(ankiconnect.Config{URL: server.URL})
	sync := services.NewSyncService(client, recovery, nil)

	notes := testNotes()
	_, err := sync.Push(context.Background(), notes)
	if err == nil {
		t.Fatal("expected error for unreachable target")
	}
	if addNotesSeen {
		t.Error("notes must not be submitted when the liveness check fails")
	}

	dumped := readRecovery(t, recovery)
	if len(dumped) != len(notes) {
		t.Fatalf("recovery holds %d notes, want %d", len(dumped), len(notes))
	}
	if dumped[0].Fields.Front != "f1" || dumped[1].Fields.Front != "f2" {
		t.Errorf("recovery content mismatch: %+v", dumped)
	}
}

func TestSyncPushRejectedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Action string `json:"action"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Action == "version" {
			w.Write([]byte(`{"result": 6, "error": null}`))
			return
		}
		w.Write([]byte(`{"result": null, "error": "model was not found: Basic"}`))
	}))
	defer server.Close()

	recovery := filepath.Join(t.TempDir(), "recovery.json")
	client := ankiconnect.NewClient(ankiconnect.Config{URL: server.URL})
	sync := services.NewSyncService(client, recovery, nil)

	notes := testNotes()
	_, err := sync.Push(context.Background(), notes)
	if err == nil {
		t.Fatal("expected error for rejected batch")
	}

	dumped := readRecovery(t, recovery)
	if len(dumped) != len(notes) {
		t.Errorf("recovery holds %d notes, want %d", len(dumped), len(notes))
	}
}

func TestSyncPushEmptyBatch(t *testing.T) {
	// No client needed: an empty batch never touches the network.
	sync := services.NewSyncService(nil, "", nil)
	ids, err := sync.Push(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if ids != nil {
		t.Errorf("ids = %v, want nil", ids)
	}
}

func TestSyncRecoveryFileUnwritable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := ankiconnect.NewClient(ankiconnect.Config{URL: server.URL})
	sync := services.NewSyncService(client, filepath.Join(t.TempDir(), "missing", "recovery.json"), nil)

	// The dump failure is logged but the sync error still comes back.
	_, err := sync.Push(context.Background(), testNotes())
	if err == nil {
		t.Fatal("sync error must survive a failed recovery dump")
	}
}

func TestSyncExportOnly(t *testing.T) {
	out := filepath.Join(t.TempDir(), "notes.json")
	sync := services.NewSyncService(nil, "", nil)

	notes := testNotes()
	if err := sync.ExportOnly(notes, out); err != nil {
		t.Fatalf("export: %v", err)
	}

	exported := readRecovery(t, out)
	if len(exported) != len(notes) {
		t.Fatalf("exported %d notes, want %d", len(exported), len(notes))
	}
	if exported[0].DeckName != "Certs" || exported[0].Tags[0] != "examdeck" {
		t.Errorf("exported content mismatch: %+v", exported[0])
	}
}
