// Package panel implements the HTTP client for SPAN smart electrical panels.
//
// A SPAN panel exposes a local REST API on port 80. The surface this
// package covers:
//
//	GET  /api/v1/status          panel identity and proximity state (no auth)
//	POST /api/v1/auth/register   obtain an access token (proximity-gated)
//	GET  /api/v1/panel           grid/relay snapshot (bearer token)
//	GET  /api/v1/circuits        all circuits (bearer token)
//	POST /api/v1/circuits/{id}   set a circuit relay (bearer token)
//	GET  /api/v1/storage/soe     battery state of energy (bearer token)
//
// # Proximity proof
//
// The panel only grants tokens while its auth window is unlocked, which
// requires physical presence. Two firmware generations signal the window
// differently in the status payload:
//
//   - newer firmware reports proximityProven (true once the door button
//     sequence has been completed)
//   - older firmware reports remainingAuthUnlockButtonPresses counting
//     down to zero
//
// Status exposes both as optional fields; exactly one is meaningful for a
// given panel.
//
// # Ping
//
// Ping is the reachability-and-credentials probe used during provisioning.
// A client without a token probes the unauthenticated status endpoint. A
// client holding a token probes the authenticated panel endpoint instead,
// so a revoked or malformed token turns the ping negative.
package panel
