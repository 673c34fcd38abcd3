// Package interactive provides the interactive command-line interface
// for span-provision.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/spanpanel/span-go/pkg/log"
	"github.com/spanpanel/span-go/pkg/provision"
	"github.com/spanpanel/span-go/pkg/registry"
	"github.com/spanpanel/span-go/pkg/switches"
)

// Config provides settings to the interactive provisioner.
type Config struct {
	// ClientName is the name registered with panels for token grants.
	ClientName string

	// Timeout is the panel HTTP timeout.
	Timeout time.Duration

	// Events receives protocol events from coordinators started here.
	Events log.Logger
}

// panelPoller is one running coordinator with its cancel handle.
type panelPoller struct {
	coord  *switches.Coordinator
	cancel context.CancelFunc
}

// Provisioner handles interactive mode for span-provision.
type Provisioner struct {
	mgr    *provision.Manager
	repo   *registry.Store
	config Config
	rl     *readline.Instance

	closeOnce sync.Once

	mu      sync.Mutex
	pollers map[string]*panelPoller
}

// New creates a new interactive provisioner handler.
func New(mgr *provision.Manager, repo *registry.Store, cfg Config) (*Provisioner, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "span> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	if cfg.Events == nil {
		cfg.Events = log.NoopLogger{}
	}

	return &Provisioner{
		mgr:     mgr,
		repo:    repo,
		config:  cfg,
		rl:      rl,
		pollers: make(map[string]*panelPoller),
	}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (p *Provisioner) Stdout() io.Writer {
	return p.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (p *Provisioner) Stderr() io.Writer {
	return p.rl.Stderr()
}

// Close stops all running pollers and releases the terminal.
func (p *Provisioner) Close() {
	p.mu.Lock()
	for serial, poller := range p.pollers {
		poller.cancel()
		delete(p.pollers, serial)
	}
	p.mu.Unlock()

	p.closeOnce.Do(func() { p.rl.Close() })
}

// Run starts the interactive command loop.
func (p *Provisioner) Run(ctx context.Context, cancel context.CancelFunc) {
	defer p.closeOnce.Do(func() { p.rl.Close() })

	p.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := p.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(p.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			p.printHelp()

		case "discover":
			p.cmdDiscover(ctx)

		case "add":
			p.cmdAdd(ctx, args)

		case "reauth":
			p.cmdReauth(ctx, args)

		case "entries", "ls":
			p.cmdEntries()

		case "options":
			p.cmdOptions(args)

		case "remove", "rm":
			p.cmdRemove(args)

		case "circuits":
			p.cmdCircuits(ctx, args)

		case "on":
			p.cmdRelay(ctx, args, true)

		case "off":
			p.cmdRelay(ctx, args, false)

		case "status":
			p.cmdStatus()

		case "quit", "exit", "q":
			fmt.Fprintln(p.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(p.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (p *Provisioner) printHelp() {
	fmt.Fprintln(p.rl.Stdout(), `
SPAN Provisioner Commands:
  Provisioning:
    discover                 - Browse mDNS for panels
    add <host>               - Provision the panel at host
    reauth <serial>          - Refresh credentials for a known panel

  Registry:
    entries                  - List provisioned panels
    options <serial>         - Edit options of a provisioned panel
    remove <serial>          - Delete a panel from the registry

  Circuits:
    circuits <serial>        - Show the panel's circuit breakers
    on <serial> <circuit>    - Close a circuit relay
    off <serial> <circuit>   - Open a circuit relay

  Other:
    status                   - Show registry and flow status
    help                     - Show this help
    quit                     - Exit`)
}

// prompt reads one line with a temporary prompt, restoring the main
// prompt afterwards.
func (p *Provisioner) prompt(text string) (string, error) {
	p.rl.SetPrompt(text)
	defer p.rl.SetPrompt("span> ")

	line, err := p.rl.Readline()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
