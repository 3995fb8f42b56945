// Package client contains the client-side building blocks of the payment API CLI.
//
// # Overview
//
// The package provides:
//  1. The Client interface covering Register, Login, Refresh, Logout, Revoke
//     and Ping against the auth REST API.
//  2. HTTPClient, the net/http implementation. It keeps the current session
//     in memory and, when a bearer-protected call is rejected with 401,
//     rotates the token pair once and retries.
//  3. InitDatabase and RunMigrations, which open the local SQLite session
//     file and apply the embedded goose migrations.
//
// # Error Handling
//
// Transport failures wrap ErrUnavailable, rejected bearer tokens wrap
// ErrUnauthorized, and every other non-2xx answer is an *APIError carrying
// the status and the server's error messages.
package client
