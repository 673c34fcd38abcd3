// Package provision implements the multi-path authentication and
// provisioning state machine for SPAN panels.
//
// A Flow carries one panel from "reachable host" to "persisted entry".
// Three entry points exist: StepUser (operator types a host), StepDiscovery
// (mDNS supplied a host), and StepReauth (a stored token went stale). All
// three converge on a shared setup that fetches the panel's serial number,
// then diverge through confirmation and auth-method selection before
// resolving into a created or updated registry entry.
//
// Step methods return a Result union: a form to (re-)render, a menu of
// choices, a created entry, or an abort with a stable reason code. Errors
// returned alongside are contract violations (setup twice, step before
// setup, resolving with missing state) and indicate caller misuse, never a
// user-correctable condition.
//
// Flows are not re-entrant. The Manager owns live flows, hands out flow
// IDs, and serializes step invocations per flow; independent flows run
// concurrently.
package provision
