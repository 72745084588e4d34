// Package rpc serves a decorator.Decorator to a terminal host over JSON-RPC 2.0.
//
// Messages are newline-delimited JSON objects on stdio, or single websocket
// frames when served through cmd/ws_bridge. Nothing else is ever written to
// the output stream; diagnostics go to the logger or the optional trace file.
//
// Requests handled:
//
//   - initialize: returns the protocol version and the registered handlers
//   - viewport/update: re-scans the visible lines ({seq, kind, lines})
//   - viewport/clear: detaches every overlay
//   - decoration/activate: runs the action of overlay {id}
//   - shutdown: answers and stops serving
//
// The server emits two notifications. decorations/changed carries the
// overlays to attach and the ids to detach after each applied update.
// window/warning carries messages such as a missing Windows path.
package rpc
