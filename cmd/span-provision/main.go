// Command span-provision provisions SPAN smart panels from the command
// line: it discovers panels on the local network, walks the multi-path
// authentication flow, and manages the resulting panel registry.
//
// Usage:
//
//	span-provision [flags]
//
// Flags:
//
//	-db string            Registry database path (default "span.db")
//	-client-name string   Name to register with panels (default derived)
//	-timeout duration     Panel HTTP timeout (default 30s)
//	-protocol-log string  Write protocol events to a CBOR log file
//	-log-level string     Log level: debug, info, warn, error (default "info")
//
// Environment:
//
//	A .env file in the working directory is loaded at startup.
//	SPAN_DB, SPAN_CLIENT_NAME and SPAN_PROTOCOL_LOG provide defaults
//	for the matching flags.
//
// Examples:
//
//	# Provision against the default registry
//	span-provision
//
//	# Keep a protocol trace for span-log to inspect
//	span-provision -db /var/lib/span/span.db -protocol-log span.cborlog
//
// Interactive Commands:
//
//	discover                 - Browse mDNS for panels
//	add <host>               - Provision the panel at host
//	reauth <serial>          - Refresh credentials for a known panel
//	entries                  - List provisioned panels
//	options <serial>         - Edit options of a provisioned panel
//	remove <serial>          - Delete a panel from the registry
//	circuits <serial>        - Show the panel's circuit breakers
//	on <serial> <circuit>    - Close a circuit relay
//	off <serial> <circuit>   - Open a circuit relay
//	status                   - Show registry and flow status
//	quit                     - Exit
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/spanpanel/span-go/cmd/span-provision/interactive"
	plog "github.com/spanpanel/span-go/pkg/log"
	"github.com/spanpanel/span-go/pkg/panel"
	"github.com/spanpanel/span-go/pkg/provision"
	"github.com/spanpanel/span-go/pkg/registry"
)

// Config holds the provisioner configuration.
type Config struct {
	DBPath      string
	ClientName  string
	Timeout     time.Duration
	ProtocolLog string
	LogLevel    string
}

var config Config

func init() {
	_ = godotenv.Load()

	flag.StringVar(&config.DBPath, "db", envDefault("SPAN_DB", "span.db"), "Registry database path")
	flag.StringVar(&config.ClientName, "client-name", envDefault("SPAN_CLIENT_NAME", ""), "Name to register with panels")
	flag.DurationVar(&config.Timeout, "timeout", 30*time.Second, "Panel HTTP timeout")
	flag.StringVar(&config.ProtocolLog, "protocol-log", envDefault("SPAN_PROTOCOL_LOG", ""), "Write protocol events to a CBOR log file")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	flag.Parse()
	setupLogging(config.LogLevel)

	log.Println("SPAN Panel Provisioner")
	log.Println("======================")
	log.Printf("Registry: %s", config.DBPath)

	store, err := registry.NewStore(config.DBPath)
	if err != nil {
		log.Fatalf("Failed to open registry: %v", err)
	}
	defer store.Close()

	store.OnReload(func(uniqueID string) {
		log.Printf("[RELOAD] Entry %s requested a reload", uniqueID)
	})

	// Protocol event logging, readable later with span-log
	var events plog.Logger = plog.NoopLogger{}
	if config.ProtocolLog != "" {
		fileLogger, err := plog.NewFileLogger(config.ProtocolLog)
		if err != nil {
			log.Fatalf("Failed to open protocol log: %v", err)
		}
		defer fileLogger.Close()
		events = fileLogger
		log.Printf("Protocol log: %s", config.ProtocolLog)
	}

	flowOpts := []provision.FlowOption{
		provision.WithLogger(events),
		provision.WithClientFactory(newPanelClient),
	}
	mgr := provision.NewManager(store, flowOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ip, err := interactive.New(mgr, store, interactive.Config{
		ClientName: config.ClientName,
		Timeout:    config.Timeout,
		Events:     events,
	})
	if err != nil {
		log.Fatalf("Failed to create interactive provisioner: %v", err)
	}
	// Redirect log output through readline to avoid interfering with input
	log.SetOutput(ip.Stdout())
	go ip.Run(ctx, cancel)

	// Wait for shutdown signal or context cancellation
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
		// Cancelled by the interactive quit command
	}

	log.SetOutput(os.Stderr)
	log.Println("Shutting down...")
	ip.Close()
	log.Println("Goodbye!")
}

func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "warn", "error":
		log.SetFlags(log.Ltime)
	}
}

// newPanelClient builds panel clients for the provisioning flows with
// the configured timeout and registration name.
func newPanelClient(host, token string) panel.API {
	opts := []panel.Option{panel.WithTimeout(config.Timeout)}
	if token != "" {
		opts = append(opts, panel.WithToken(token))
	}
	if config.ClientName != "" {
		opts = append(opts, panel.WithClientName(config.ClientName))
	}
	return panel.NewClient(host, opts...)
}
