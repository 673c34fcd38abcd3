// Package registry persists provisioned panel entries.
//
// An Entry records one provisioned panel: its unique ID (the panel serial
// number), the host it was last reached at, the access token obtained
// during provisioning, and the integration options. The provisioning flow
// creates entries, re-auth updates them, and the options flow rewrites
// their options.
//
// Store is the SQLite-backed implementation. Consumers that poll a panel
// register a reload hook via OnReload; RequestReload fires after re-auth
// rewrites an entry's credentials so pollers pick up the new token.
package registry
