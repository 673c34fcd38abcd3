package panelsim

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spanpanel/span-go/pkg/panel"
)

func TestStateStoreSaveLoad(t *testing.T) {
	// Nested directory that does not exist yet
	path := filepath.Join(t.TempDir(), "sim", "state.json")
	store := NewStateStore(path)

	saved := &SimState{
		Clients: []RegisteredClient{
			{Name: "home-assistant", Description: "local integration", IssuedAt: time.Now()},
		},
		Relays: map[string]panel.RelayState{
			"c1": panel.RelayOpen,
			"c2": panel.RelayClosed,
		},
	}
	if err := store.Save(saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded == nil {
		t.Fatal("Load() = nil after Save")
	}
	if loaded.Version != StateVersion {
		t.Errorf("Version = %d, want %d", loaded.Version, StateVersion)
	}
	if loaded.SavedAt.IsZero() {
		t.Error("SavedAt is zero")
	}
	if len(loaded.Clients) != 1 || loaded.Clients[0].Name != "home-assistant" {
		t.Errorf("Clients = %+v, want the saved grant", loaded.Clients)
	}
	if loaded.Relays["c1"] != panel.RelayOpen || loaded.Relays["c2"] != panel.RelayClosed {
		t.Errorf("Relays = %v, want saved positions", loaded.Relays)
	}
}

func TestStateStoreLoadMissing(t *testing.T) {
	store := NewStateStore(filepath.Join(t.TempDir(), "absent.json"))

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for missing file", err)
	}
	if loaded != nil {
		t.Errorf("Load() = %+v, want nil for missing file", loaded)
	}
}

func TestStateStoreClear(t *testing.T) {
	store := NewStateStore(filepath.Join(t.TempDir(), "state.json"))

	if err := store.Save(&SimState{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil || loaded != nil {
		t.Errorf("Load() after Clear = (%v, %v), want (nil, nil)", loaded, err)
	}

	// Clearing a missing file is not an error
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestStateStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewStateStore(path)
	if _, err := store.Load(); err == nil {
		t.Error("Load() error = nil for corrupt file, want error")
	}
}
