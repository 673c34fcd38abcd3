package panelsim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spanpanel/span-go/pkg/panel"
)

// StateVersion is the current version of the persisted state format.
const StateVersion = 1

// RegisteredClient records one access token grant.
type RegisteredClient struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IssuedAt    time.Time `json:"issuedAt"`
}

// SimState is the simulator state that survives restarts: which clients
// hold tokens and where the relays were left.
type SimState struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"savedAt"`

	Clients []RegisteredClient          `json:"clients,omitempty"`
	Relays  map[string]panel.RelayState `json:"relays,omitempty"`
}

// StateStore persists simulator state to a JSON file.
type StateStore struct {
	path string
}

// NewStateStore creates a store that persists to the given path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the file path used by the store.
func (s *StateStore) Path() string {
	return s.path
}

// Save writes the state to disk, creating the directory if needed.
func (s *StateStore) Save(state *SimState) error {
	state.Version = StateVersion
	state.SavedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// Load reads the state from disk. Returns nil, nil if no state file
// exists yet.
func (s *StateStore) Load() (*SimState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state SimState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &state, nil
}

// Clear removes the state file. Missing files are not an error.
func (s *StateStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}
