// Package cli provides the interactive command-line client of the payment API.
//
// It wires configuration, the local session file, the HTTP API client and an
// interactive REPL. A saved session is restored at start-up, a background
// watcher tracks whether the server is reachable, and the REPL offers
// register, login, refresh, revoke, logout and status commands.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
