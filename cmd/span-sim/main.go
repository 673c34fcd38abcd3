// Command span-sim runs a simulated SPAN panel.
//
// The simulator serves the panel REST API with a configurable set of
// circuits, enforces the door-button auth window, and grants bearer
// tokens, so provisioning and polling can be exercised without panel
// hardware. Console commands stand in for physical access: pressing
// the door button, relocking the panel, flipping breakers.
//
// Usage:
//
//	span-sim [flags]
//
// Flags:
//
//	-addr string           HTTP listen address (default ":8080")
//	-config string         Panel configuration file (YAML)
//	-serial string         Panel serial number (overrides config)
//	-firmware string       Firmware behavior: new, old (overrides config)
//	-presses int           Door-button presses required to unlock (overrides config)
//	-unlock-window dur     How long the auth window stays open (overrides config)
//	-state string          State file for token grants and relay positions
//	-advertise             Advertise the panel over mDNS
//	-name string           Advertised panel name
//	-protocol-log string   Write protocol events to this file (CBOR)
//	-log-level string      Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Default panel on :8080
//	span-sim
//
//	# Old firmware with persistence and mDNS advertising
//	span-sim -firmware old -state span-sim.json -advertise
//
//	# Custom panel definition, fast auth window for testing
//	span-sim -config panel.yaml -presses 1 -unlock-window 30s
//
// Console Commands:
//
//	press            Press the door button once
//	lock             Relock the auth window
//	window           Show auth window state
//	circuits         List circuits and relay positions
//	relay <id> <s>   Drive a relay: open or closed
//	clients          List granted access tokens
//	quit             Shut down
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spanpanel/span-go/internal/panelsim"
	"github.com/spanpanel/span-go/pkg/discovery"
	plog "github.com/spanpanel/span-go/pkg/log"
	"github.com/spanpanel/span-go/pkg/panel"
)

// Config holds the simulator command configuration.
type Config struct {
	Addr         string
	ConfigFile   string
	Serial       string
	Firmware     string
	Presses      int
	UnlockWindow time.Duration
	StateFile    string
	Advertise    bool
	Name         string
	ProtocolLog  string
	LogLevel     string
}

var config Config

func init() {
	flag.StringVar(&config.Addr, "addr", ":8080", "HTTP listen address")
	flag.StringVar(&config.ConfigFile, "config", "", "Panel configuration file (YAML)")
	flag.StringVar(&config.Serial, "serial", "", "Panel serial number (overrides config)")
	flag.StringVar(&config.Firmware, "firmware", "", "Firmware behavior: new, old (overrides config)")
	flag.IntVar(&config.Presses, "presses", 0, "Door-button presses required to unlock (overrides config)")
	flag.DurationVar(&config.UnlockWindow, "unlock-window", 0, "How long the auth window stays open (overrides config)")
	flag.StringVar(&config.StateFile, "state", "", "State file for token grants and relay positions")
	flag.BoolVar(&config.Advertise, "advertise", false, "Advertise the panel over mDNS")
	flag.StringVar(&config.Name, "name", "", "Advertised panel name")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "Write protocol events to this file (CBOR)")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()
	logger := setupLogging(config.LogLevel)

	cfg, err := loadPanelConfig()
	if err != nil {
		log.Fatalf("Invalid panel configuration: %v", err)
	}

	opts := []panelsim.Option{panelsim.WithLogger(logger)}
	if config.StateFile != "" {
		opts = append(opts, panelsim.WithStateStore(panelsim.NewStateStore(config.StateFile)))
	}
	if config.ProtocolLog != "" {
		events, err := plog.NewFileLogger(config.ProtocolLog)
		if err != nil {
			log.Fatalf("Failed to open protocol log: %v", err)
		}
		defer events.Close()
		opts = append(opts, panelsim.WithEventLogger(events))
	}

	sim, err := panelsim.NewSimulator(cfg, opts...)
	if err != nil {
		log.Fatalf("Failed to create simulator: %v", err)
	}
	srv := panelsim.NewServer(sim, config.Addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	var advertiser *discovery.MDNSAdvertiser
	if config.Advertise {
		advertiser, err = startAdvertising(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to advertise: %v", err)
		}
		defer advertiser.Stop()
	}

	printBanner(cfg)
	go runConsole(ctx, cancel, sim)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error stopping server: %v", err)
	}
	log.Println("Goodbye!")
}

// setupLogging configures the process logger and returns the structured
// logger handed to the simulator.
func setupLogging(level string) *slog.Logger {
	log.SetFlags(log.Ltime)

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
		log.SetFlags(log.Ltime | log.Lshortfile)
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel}))
}

// loadPanelConfig builds the panel configuration from the config file
// (or defaults) and applies flag overrides.
func loadPanelConfig() (*panelsim.Config, error) {
	var cfg *panelsim.Config
	if config.ConfigFile != "" {
		loaded, err := panelsim.LoadConfig(config.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = panelsim.DefaultConfig()
	}

	if config.Serial != "" {
		cfg.Serial = config.Serial
	}
	if config.Firmware != "" {
		cfg.Mode = panelsim.FirmwareMode(config.Firmware)
	}
	if config.Presses > 0 {
		cfg.RequiredPresses = config.Presses
	}
	if config.UnlockWindow > 0 {
		cfg.UnlockWindow = config.UnlockWindow.String()
	}
	return cfg, nil
}

// startAdvertising announces the simulated panel over mDNS on the
// listen port.
func startAdvertising(ctx context.Context, cfg *panelsim.Config) (*discovery.MDNSAdvertiser, error) {
	advertiser, err := discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
	if err != nil {
		return nil, err
	}

	info := &discovery.PanelInfo{
		Serial:   cfg.Serial,
		Model:    cfg.Model,
		Firmware: cfg.FirmwareVersion,
		Name:     config.Name,
		Port:     listenPort(config.Addr),
	}
	if err := advertiser.Advertise(ctx, info); err != nil {
		return nil, err
	}
	return advertiser, nil
}

// listenPort extracts the port from a listen address, falling back to
// the default panel port.
func listenPort(addr string) uint16 {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return discovery.DefaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return discovery.DefaultPort
	}
	return uint16(port)
}

func printBanner(cfg *panelsim.Config) {
	fmt.Println("SPAN Panel Simulator")
	fmt.Println("====================")
	fmt.Printf("Serial:    %s\n", cfg.Serial)
	fmt.Printf("Model:     %s\n", cfg.Model)
	fmt.Printf("Firmware:  %s (%s behavior)\n", cfg.FirmwareVersion, cfg.Mode)
	fmt.Printf("Circuits:  %d\n", len(cfg.Circuits))
	fmt.Printf("Listening: %s\n", config.Addr)
	if config.Advertise {
		fmt.Printf("mDNS:      %s.%s\n", discovery.ServiceTypePanel, discovery.Domain)
	}
	fmt.Println()
}

// runConsole reads operator commands from stdin until EOF or quit.
func runConsole(ctx context.Context, cancel context.CancelFunc, sim *panelsim.Simulator) {
	printConsoleHelp()
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("sim> ")

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			fmt.Print("sim> ")
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "help", "?":
			printConsoleHelp()

		case "press", "p":
			remaining, unlocked := sim.PressButton()
			if unlocked {
				fmt.Printf("Auth window UNLOCKED for %s\n", sim.WindowRemainingTime().Round(time.Second))
			} else {
				fmt.Printf("%d more press(es) needed\n", remaining)
			}

		case "lock":
			sim.LockWindow()
			fmt.Println("Auth window locked")

		case "window", "w":
			printWindow(sim)

		case "circuits":
			printCircuits(sim)

		case "relay":
			if len(fields) != 3 {
				fmt.Println("Usage: relay <circuit> <open|closed>")
				break
			}
			state := panel.RelayState(strings.ToUpper(fields[2]))
			if err := sim.SetRelay(fields[1], state); err != nil {
				fmt.Printf("Failed: %v\n", err)
				break
			}
			fmt.Printf("Relay %s is now %s\n", fields[1], state)

		case "clients":
			printClients(sim)

		case "quit", "exit", "q":
			cancel()
			return

		default:
			fmt.Printf("Unknown command: %s (try 'help')\n", fields[0])
		}

		fmt.Print("sim> ")
	}
}

func printConsoleHelp() {
	fmt.Println("Commands:")
	fmt.Println("  press            Press the door button once")
	fmt.Println("  lock             Relock the auth window")
	fmt.Println("  window           Show auth window state")
	fmt.Println("  circuits         List circuits and relay positions")
	fmt.Println("  relay <id> <s>   Drive a relay: open or closed")
	fmt.Println("  clients          List granted access tokens")
	fmt.Println("  quit             Shut down")
}

func printWindow(sim *panelsim.Simulator) {
	if sim.WindowUnlocked() {
		fmt.Printf("Auth window: UNLOCKED, relocks in %s\n", sim.WindowRemainingTime().Round(time.Second))
		return
	}
	fmt.Printf("Auth window: LOCKED, %d press(es) to unlock\n", sim.RemainingPresses())
}

func printCircuits(sim *panelsim.Simulator) {
	for _, c := range sim.Circuits() {
		control := ""
		if !c.IsUserControllable {
			control = "  (not controllable)"
		}
		fmt.Printf("  %-12s %-20s %-7s %8.1f W%s\n",
			c.ID, c.Name, string(c.RelayState), c.InstantPowerW, control)
	}
}

func printClients(sim *panelsim.Simulator) {
	clients := sim.Clients()
	if len(clients) == 0 {
		fmt.Println("No access tokens granted")
		return
	}
	for _, c := range clients {
		fmt.Printf("  %-24s granted %s\n", c.Name, c.IssuedAt.Format(time.RFC3339))
	}
}
