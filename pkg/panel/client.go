package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client defaults.
const (
	// DefaultTimeout is the default HTTP timeout for panel requests.
	DefaultTimeout = 30 * time.Second

	// DefaultClientName is the name prefix sent when registering for a token.
	DefaultClientName = "span-go"

	// DefaultClientDescription accompanies the registration request.
	DefaultClientDescription = "span-go local integration"
)

// API is the panel surface consumed by the provisioning flow and the
// circuit coordinator. *Client implements it; tests substitute fakes.
type API interface {
	// Host returns the host this client talks to.
	Host() string

	// Ping probes reachability. A client holding a token probes an
	// authenticated endpoint so invalid credentials fail the ping.
	Ping(ctx context.Context) bool

	// StatusData fetches the unauthenticated status snapshot.
	StatusData(ctx context.Context) (*Status, error)

	// AccessToken registers this client with the panel and returns a new
	// bearer token. The panel only grants while proximity is proven.
	AccessToken(ctx context.Context) (string, error)

	// Circuits fetches all circuits keyed by circuit ID.
	Circuits(ctx context.Context) (map[string]Circuit, error)

	// PanelData fetches the authenticated grid/relay snapshot.
	PanelData(ctx context.Context) (*PanelData, error)

	// BatteryStorage fetches the battery state of energy.
	BatteryStorage(ctx context.Context) (*BatteryStorage, error)

	// SetRelay drives a circuit relay to the given state.
	SetRelay(ctx context.Context, circuitID string, state RelayState) error
}

// Client talks to a single SPAN panel over its local REST API.
// A Client is immutable after construction and safe for concurrent use.
type Client struct {
	host        string
	token       string
	clientName  string
	description string
	httpClient  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token for authenticated endpoints.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the HTTP timeout. Ignored if WithHTTPClient is also given.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if c.httpClient != nil {
			return
		}
		c.httpClient = &http.Client{Timeout: d}
	}
}

// WithClientName sets the name used when registering for a token.
func WithClientName(name string) Option {
	return func(c *Client) { c.clientName = name }
}

// NewClient creates a client for the panel at host (hostname, IP, or
// host:port).
func NewClient(host string, opts ...Option) *Client {
	c := &Client{
		host:        host,
		description: DefaultClientDescription,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return c
}

// Host returns the host this client talks to.
func (c *Client) Host() string {
	return c.host
}

// Token returns the configured bearer token ("" if none).
func (c *Client) Token() string {
	return c.token
}

// HasToken reports whether the client holds a bearer token.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// Ping probes the panel. Without a token it hits the status endpoint;
// with a token it hits the authenticated panel endpoint, so a bad token
// turns the ping negative.
func (c *Client) Ping(ctx context.Context) bool {
	if c.HasToken() {
		_, err := c.PanelData(ctx)
		return err == nil
	}
	_, err := c.StatusData(ctx)
	return err == nil
}

// StatusData fetches the unauthenticated status snapshot.
func (c *Client) StatusData(ctx context.Context) (*Status, error) {
	var wire statusWire
	if err := c.get(ctx, PathStatus, false, &wire); err != nil {
		return nil, err
	}
	status := wire.toStatus()
	if status.SerialNumber == "" {
		// Something answered, but not with a panel status payload.
		return nil, ErrNotSpanPanel
	}
	return status, nil
}

// AccessToken registers this client with the panel and returns the granted
// bearer token. Registration names must be unique per panel, so a random
// suffix is appended unless a fixed name was configured.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	name := c.clientName
	if name == "" {
		name = fmt.Sprintf("%s-%.8s", DefaultClientName, uuid.NewString())
	}

	req := registerWire{Name: name, Description: c.description}
	var wire tokenWire
	if err := c.post(ctx, PathRegister, false, req, &wire); err != nil {
		return "", err
	}
	if wire.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrNotSpanPanel)
	}
	return wire.AccessToken, nil
}

// Circuits fetches all circuits keyed by circuit ID.
func (c *Client) Circuits(ctx context.Context) (map[string]Circuit, error) {
	var wire circuitsWire
	if err := c.get(ctx, PathCircuits, true, &wire); err != nil {
		return nil, err
	}

	circuits := make(map[string]Circuit, len(wire.Circuits))
	for id, cw := range wire.Circuits {
		circuit := cw.toCircuit()
		if circuit.ID == "" {
			circuit.ID = id
		}
		circuits[id] = circuit
	}
	return circuits, nil
}

// PanelData fetches the authenticated grid/relay snapshot.
func (c *Client) PanelData(ctx context.Context) (*PanelData, error) {
	var wire panelWire
	if err := c.get(ctx, PathPanel, true, &wire); err != nil {
		return nil, err
	}
	return wire.toPanelData(), nil
}

// BatteryStorage fetches the battery state of energy.
func (c *Client) BatteryStorage(ctx context.Context) (*BatteryStorage, error) {
	var wire batteryWire
	if err := c.get(ctx, PathBattery, true, &wire); err != nil {
		return nil, err
	}
	return &BatteryStorage{Percentage: wire.SOE.Percentage}, nil
}

// SetRelay drives a circuit relay to the given state.
func (c *Client) SetRelay(ctx context.Context, circuitID string, state RelayState) error {
	if err := state.Validate(); err != nil {
		return err
	}

	var req relayWire
	req.RelayStateIn.RelayState = state

	path := fmt.Sprintf("%s/%s", PathCircuits, circuitID)
	return c.post(ctx, path, true, req, nil)
}

// get performs a GET request and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, auth bool, out any) error {
	return c.do(ctx, http.MethodGet, path, auth, nil, out)
}

// post performs a POST request with a JSON body, decoding into out if non-nil.
func (c *Client) post(ctx context.Context, path string, auth bool, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, auth, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, body []byte, out any) error {
	if auth && !c.HasToken() {
		return ErrNoToken
	}

	url := fmt.Sprintf("http://%s%s", c.host, path)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("panel request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s %s", ErrUnauthorized, method, path)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrCircuitNotFound, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %d on %s %s", ErrStatusCode, resp.StatusCode, method, path)
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrNotSpanPanel, path, err)
	}
	return nil
}

// Compile-time interface satisfaction check.
var _ API = (*Client)(nil)
