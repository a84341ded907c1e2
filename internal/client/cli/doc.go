// Package cli wires the Collabdesk sync client into an interactive
// terminal application.
//
// NewApp assembles the full client stack (durable cache, reconnecting
// websocket transport, retrying sender, reconciliation store, push
// dispatcher and per-project budget editors) from a config.Config, and
// App.Run drives a small REPL over it. See runREPL for the command set.
package cli
