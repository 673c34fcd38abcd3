package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spanpanel/span-go/pkg/provision"
)

// cmdAdd provisions the panel at the given host through the user flow.
func (p *Provisioner) cmdAdd(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(p.rl.Stdout(), "Usage: add <host>")
		return
	}
	host := args[0]

	flowID, res, err := p.mgr.StartUser(ctx)
	if err != nil {
		fmt.Fprintf(p.rl.Stdout(), "Failed to start flow: %v\n", err)
		return
	}

	// The user step renders the host form first; feed the host straight in.
	if res.Type == provision.ResultTypeForm && res.Form.StepID == provision.StepIDUser {
		res, err = p.mgr.Submit(ctx, flowID, map[string]string{provision.FieldHost: host})
	}

	p.runFlow(ctx, flowID, res, err)
}

// cmdReauth refreshes the credentials of a known panel.
func (p *Provisioner) cmdReauth(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(p.rl.Stdout(), "Usage: reauth <serial>")
		return
	}

	flowID, res, err := p.mgr.StartReauth(ctx, args[0])
	if err != nil {
		fmt.Fprintf(p.rl.Stdout(), "Failed to start reauth: %v\n", err)
		return
	}

	p.runFlow(ctx, flowID, res, err)
}

// runFlow drives one provisioning flow to completion, rendering each
// form and menu the flow asks for.
func (p *Provisioner) runFlow(ctx context.Context, flowID string, res provision.Result, err error) {
	out := p.rl.Stdout()

	for {
		if err != nil {
			p.mgr.Cancel(flowID)
			fmt.Fprintf(out, "Flow failed: %v\n", err)
			return
		}

		switch res.Type {
		case provision.ResultTypeForm:
			res, err = p.driveForm(ctx, flowID, res.Form)

		case provision.ResultTypeMenu:
			res, err = p.driveMenu(ctx, flowID, res.Menu)

		case provision.ResultTypeEntry:
			fmt.Fprintf(out, "Provisioned %s (%s) at %s\n", res.Entry.Title, res.Entry.UniqueID, res.Entry.Host)
			return

		case provision.ResultTypeAbort:
			fmt.Fprintln(out, describeAbort(res.Abort.Reason))
			return
		}

		if err == errFlowCancelled {
			p.mgr.Cancel(flowID)
			fmt.Fprintln(out, "Cancelled.")
			return
		}
	}
}

// errFlowCancelled signals that the operator backed out of a flow.
var errFlowCancelled = errors.New("flow cancelled")

// driveForm renders one form and submits the operator's input.
func (p *Provisioner) driveForm(ctx context.Context, flowID string, form *provision.FormResult) (provision.Result, error) {
	out := p.rl.Stdout()
	printFormErrors(out, form.Errors)

	switch form.StepID {
	case provision.StepIDUser:
		host, err := p.prompt("  panel host (empty to cancel): ")
		if err != nil || host == "" {
			return provision.Result{}, errFlowCancelled
		}
		return p.mgr.Submit(ctx, flowID, map[string]string{provision.FieldHost: host})

	case provision.StepIDConfirmDiscovery:
		fmt.Fprintf(out, "Found SPAN panel at %s\n", form.Placeholders[provision.FieldHost])
		answer, err := p.prompt("  provision this panel? [Y/n]: ")
		if err != nil {
			return provision.Result{}, errFlowCancelled
		}
		switch answer {
		case "", "y", "Y", "yes":
			return p.mgr.Submit(ctx, flowID, nil)
		default:
			return provision.Result{}, errFlowCancelled
		}

	case provision.StepIDAuthProximity:
		fmt.Fprintln(out, "Open the panel door and press the door button until the frame lights blink.")
		answer, err := p.prompt("  press enter to check again (or 'cancel'): ")
		if err != nil || answer == "cancel" {
			return provision.Result{}, errFlowCancelled
		}
		return p.mgr.Submit(ctx, flowID, nil)

	case provision.StepIDAuthToken:
		token, err := p.prompt("  access token (empty to go back): ")
		if err != nil {
			return provision.Result{}, errFlowCancelled
		}
		return p.mgr.Submit(ctx, flowID, map[string]string{provision.FieldAccessToken: token})

	default:
		fmt.Fprintf(out, "Unexpected form step: %s\n", form.StepID)
		return provision.Result{}, errFlowCancelled
	}
}

// driveMenu renders a choice menu and applies the operator's selection.
func (p *Provisioner) driveMenu(ctx context.Context, flowID string, menu *provision.MenuResult) (provision.Result, error) {
	out := p.rl.Stdout()

	fmt.Fprintln(out, "How should the panel authorize this client?")
	for i, opt := range menu.Options {
		fmt.Fprintf(out, "  %d) %s\n", i+1, opt.Label)
	}

	for {
		answer, err := p.prompt(fmt.Sprintf("  choice [1-%d, 'back']: ", len(menu.Options)))
		if err != nil {
			return provision.Result{}, errFlowCancelled
		}
		if answer == "back" || answer == "b" {
			return p.mgr.Choose(ctx, flowID, "")
		}

		n, err := strconv.Atoi(answer)
		if err != nil || n < 1 || n > len(menu.Options) {
			fmt.Fprintln(out, "  Enter a number from the list.")
			continue
		}
		return p.mgr.Choose(ctx, flowID, menu.Options[n-1].ID)
	}
}

func printFormErrors(out io.Writer, errs map[string]string) {
	for field, code := range errs {
		fmt.Fprintf(out, "  ! %s: %s\n", field, describeError(code))
	}
}

// describeError maps stable form error codes to operator-facing text.
func describeError(code string) string {
	switch code {
	case provision.ErrorCannotConnect:
		return "could not reach a SPAN panel at that address"
	default:
		return code
	}
}

// describeAbort maps stable abort reasons to operator-facing text.
func describeAbort(reason string) string {
	switch reason {
	case provision.AbortAlreadyConfigured:
		return "This panel is already provisioned (host refreshed if it moved)."
	case provision.AbortNotIPv4Address:
		return "Discovery offered a non-IPv4 address; not probing it."
	case provision.AbortNotSpanPanel:
		return "The host did not respond like a SPAN panel."
	case provision.AbortInvalidAccessToken:
		return "The panel rejected the credentials."
	case provision.AbortHostNotSet:
		return "The flow lost its host; start over."
	case provision.AbortReauthSuccessful:
		return "Credentials refreshed."
	default:
		return fmt.Sprintf("Flow ended: %s", reason)
	}
}
