// Package mcpserver exposes link detection and activation as Model Context
// Protocol tools, so an agent reading terminal output can find and open the
// links in it the same way a user clicking an overlay would.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/m4xw311/termlinks/errors"
	"github.com/m4xw311/termlinks/link"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	ToolDetectLinks = "detect_links"
	ToolOpenLink    = "open_link"
)

// TextArgs is the input of both tools.
type TextArgs struct {
	Text string `json:"text" jsonschema:"terminal output, may span several lines"`
}

// DetectedLink describes one link found by detect_links. Start and End are
// byte offsets into the line, End exclusive.
type DetectedLink struct {
	Line    int    `json:"line"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Text    string `json:"text"`
	Handler string `json:"handler"`
	Target  string `json:"target"`
}

// Server serves the link tools. It is also the Notifier for the handlers of
// its registry: warnings raised while a link is opened are returned to the
// caller in the tool result.
type Server struct {
	registry atomic.Pointer[link.Registry]
	logger   *slog.Logger
	server   *mcpsdk.Server

	mu       sync.Mutex // serializes open_link calls
	warnings []string
}

// New creates a server with both tools registered. SetRegistry must be
// called before the first tool call.
func New(name, version string, logger *slog.Logger) *Server {
	s := &Server{logger: logger}
	s.server = mcpsdk.NewServer(&mcpsdk.Implementation{Name: name, Version: version}, nil)
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        ToolDetectLinks,
		Description: "Find URLs and file paths in terminal output. Returns one entry per link with its line, byte offsets, handler and normalized target.",
	}, s.detectLinks)
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        ToolOpenLink,
		Description: "Open the first link found in the text: URLs in the browser, files in the configured editor.",
	}, s.openLink)
	return s
}

func (s *Server) SetRegistry(r *link.Registry) {
	s.registry.Store(r)
}

// ReportWarning implements action.Notifier.
func (s *Server) ReportWarning(message string) {
	s.logger.Warn(message)
	s.warnings = append(s.warnings, message)
}

// Run serves the tools over t until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context, t mcpsdk.Transport) error {
	if err := s.server.Run(ctx, t); err != nil {
		return errors.Wrapf(err, "mcp server stopped")
	}
	return nil
}

// Connect starts a session over t without blocking.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.server.Connect(ctx, t)
}

// Detect scans every line of text.
func (s *Server) Detect(text string) []DetectedLink {
	registry := s.registry.Load()
	var found []DetectedLink
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		for _, span := range registry.Scan(line) {
			found = append(found, DetectedLink{
				Line:    i,
				Start:   span.Start,
				End:     span.End,
				Text:    span.Text,
				Handler: span.Handler.Name(),
				Target:  span.Target(),
			})
		}
	}
	return found
}

func (s *Server) detectLinks(ctx context.Context, ss *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[TextArgs]) (*mcpsdk.CallToolResultFor[any], error) {
	found := s.Detect(params.Arguments.Text)
	if found == nil {
		found = []DetectedLink{}
	}
	data, err := json.MarshalIndent(found, "", "  ")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode links")
	}
	return textResult(string(data), false), nil
}

func (s *Server) openLink(ctx context.Context, ss *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[TextArgs]) (*mcpsdk.CallToolResultFor[any], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	span, ok := s.first(params.Arguments.Text)
	if !ok {
		return textResult("No link found in the text.", true), nil
	}

	s.warnings = nil
	target := span.Target()
	if err := span.Activate(ctx); err != nil {
		s.logger.Error("link action failed", "handler", span.Handler.Name(), "target", target, "err", err)
		return textResult(fmt.Sprintf("Could not open %s: %v", target, err), true), nil
	}
	if len(s.warnings) > 0 {
		return textResult(strings.Join(s.warnings, "\n"), true), nil
	}
	return textResult(fmt.Sprintf("Opened %s (%s).", target, span.Handler.Name()), false), nil
}

func (s *Server) first(text string) (link.Span, bool) {
	registry := s.registry.Load()
	for _, line := range strings.Split(text, "\n") {
		if spans := registry.Scan(strings.TrimSuffix(line, "\r")); len(spans) > 0 {
			return spans[0], true
		}
	}
	return link.Span{}, false
}

func textResult(text string, isError bool) *mcpsdk.CallToolResultFor[any] {
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
		IsError: isError,
	}
}
