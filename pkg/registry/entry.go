package registry

import (
	"errors"
	"time"

	"github.com/spanpanel/span-go/pkg/options"
)

// Registry errors.
var (
	ErrAlreadyExists = errors.New("entry already exists")
	ErrNotFound      = errors.New("entry not found")
)

// Entry is one provisioned panel.
type Entry struct {
	// UniqueID is the panel serial number. Stable across host changes.
	UniqueID string `json:"unique_id"`

	// Title is the display title. Set to the serial number on creation.
	Title string `json:"title"`

	// Host is the address the panel was last reached at.
	Host string `json:"host"`

	// AccessToken is the bearer token obtained during provisioning.
	AccessToken string `json:"access_token,omitempty"`

	// Options holds the integration options for this panel.
	Options options.Options `json:"options"`

	// CreatedAt is when the entry was first created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the entry was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository is the persistence contract the provisioning flow works
// against. Lookups return nil without error when no entry matches.
type Repository interface {
	// FindByUniqueID returns the entry with the given unique ID.
	FindByUniqueID(uniqueID string) (*Entry, error)

	// FindByHost returns the entry configured for the given host.
	FindByHost(host string) (*Entry, error)

	// All returns all entries.
	All() ([]Entry, error)

	// Create stores a new entry. Fails with ErrAlreadyExists if an entry
	// with the same unique ID exists.
	Create(entry *Entry) error

	// Update rewrites an existing entry's host and access token.
	// Fails with ErrNotFound if no entry with the unique ID exists.
	Update(entry *Entry) error

	// UpdateHost updates only the host of an existing entry.
	UpdateHost(uniqueID, host string) error

	// UpdateOptions rewrites the options of an existing entry.
	UpdateOptions(uniqueID string, opts options.Options) error

	// Delete removes an entry.
	Delete(uniqueID string) error

	// RequestReload asks consumers of the entry to reload it.
	RequestReload(uniqueID string) error
}
