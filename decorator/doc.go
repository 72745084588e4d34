// Package decorator keeps clickable overlays in sync with the text a terminal
// currently shows.
//
// The terminal host reports every change of its viewport (new output, a
// resize, scrollback navigation) as an Event carrying the visible lines. The
// Decorator scans those lines with a link.Registry and tells a Renderer which
// overlays to attach and which to detach. When the user activates an
// overlay, the host calls Activate with its ID and the owning handler
// performs its side effect.
//
// # Lifecycle
//
// A Decorator moves between three states:
//
//   - Idle: no overlays are attached
//   - Scanning: an event is being processed
//   - Decorated: at least one overlay is attached
//
// Every event triggers a full re-scan of the lines it carries; there is no
// timer. Events carry a sequence number and an event that is not newer than
// the last applied one is dropped, so overlays always describe the most
// recent text. A scan interrupted through its context is discarded and the
// previous overlays stay until the next successful update.
//
// # Activation
//
// Activate applies the handler's conversion to the span text and calls its
// Handle method. A failing handler never fails the host: the error is logged
// and reported to the Notifier.
//
// # Subpackages
//
// decorator/rpc serves a Decorator to a terminal host over JSON-RPC.
//
// decorator/terminal renders links inline as OSC 8 hyperlinks for terminals
// that support them, without a host integration.
package decorator
