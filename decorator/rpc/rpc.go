package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/m4xw311/termlinks/decorator"
	"github.com/m4xw311/termlinks/errors"
)

const ProtocolVersion = 1

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Transport moves whole JSON-RPC messages.
type Transport interface {
	// ReadMessage returns the next message, or io.EOF once the peer is gone.
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
}

// StdioTransport frames messages as newline-delimited JSON.
type StdioTransport struct {
	in  *bufio.Reader
	out *bufio.Writer
	mu  sync.Mutex
}

func NewStdioTransport(in *bufio.Reader, out *bufio.Writer) *StdioTransport {
	return &StdioTransport{in: in, out: out}
}

func (t *StdioTransport) ReadMessage() ([]byte, error) {
	line, err := t.in.ReadBytes('\n')
	if err == io.EOF && len(line) > 0 {
		// Last message without a trailing newline.
		return bytes.TrimSpace(line), nil
	}
	if err != nil {
		return nil, err
	}
	return bytes.TrimSpace(line), nil
}

func (t *StdioTransport) WriteMessage(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.out.Write(data); err != nil {
		return err
	}
	// Write newline to inform the client that the message is complete.
	if err := t.out.WriteByte('\n'); err != nil {
		return err
	}
	return t.out.Flush()
}

// ---- JSON-RPC types ----

// jsonrpcRequest is a request, or a notification when ID is absent.
type jsonrpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *jsonrpcError `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type handlerInfo struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

type initializeResult struct {
	ProtocolVersion int           `json:"protocolVersion"`
	Handlers        []handlerInfo `json:"handlers"`
	MaxLineLength   int           `json:"maxLineLength"`
}

type updateResult struct {
	Seq         uint64 `json:"seq"`
	Decorations int    `json:"decorations"`
	Stale       bool   `json:"stale"`
}

type activateParams struct {
	ID int `json:"id"`
}

// changedParams is the payload of the decorations/changed notification.
type changedParams struct {
	Seq    uint64                 `json:"seq"`
	Attach []decorator.Decoration `json:"attach"`
	Detach []int                  `json:"detach"`
}

// ---- Server ----

// Server speaks the host protocol for one Decorator. It is also the
// decorator's Renderer, batching overlay changes into one decorations/changed
// notification per update, and the Notifier for the handlers it drives.
type Server struct {
	transport Transport
	logger    *slog.Logger
	// Trace receives a line for every message in and out. Defaults to a no-op.
	Trace func(string)

	attach []decorator.Decoration
	detach []int
}

func NewServer(t Transport, logger *slog.Logger) *Server {
	return &Server{
		transport: t,
		logger:    logger,
		Trace:     func(string) {},
	}
}

// TraceFile returns a trace function appending timestamped lines to path.
func TraceFile(path string) (func(string), io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not open trace file")
	}
	var mu sync.Mutex
	trace := func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(f, "[%s] %s\n", time.Now().Format("15:04:05.000"), msg)
	}
	return trace, f, nil
}

// Attach implements decorator.Renderer.
func (s *Server) Attach(d decorator.Decoration) {
	s.attach = append(s.attach, d)
}

// Detach implements decorator.Renderer.
func (s *Server) Detach(d decorator.Decoration) {
	s.detach = append(s.detach, d.ID)
}

// ReportWarning implements action.Notifier.
func (s *Server) ReportWarning(message string) {
	s.logger.Warn(message)
	_ = s.writeNotification("window/warning", map[string]string{"message": message})
}

// Serve reads requests until the peer disconnects, shutdown is requested or
// ctx is done. Overlays are cleared on return.
func (s *Server) Serve(ctx context.Context, dec *decorator.Decorator) error {
	s.Trace("Serve: starting")
	defer dec.Clear()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		payload, err := s.transport.ReadMessage()
		if err != nil {
			if err == io.EOF {
				s.Trace("Serve: EOF received, exiting")
				return nil
			}
			// If framing is broken, there isn't a safe way to continue.
			s.Trace(fmt.Sprintf("Serve: read error: %v", err))
			return errors.Wrapf(err, "read error")
		}
		if len(payload) == 0 {
			continue
		}
		s.Trace(fmt.Sprintf("Serve: received payload: %s", payload))

		var req jsonrpcRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			s.Trace(fmt.Sprintf("Serve: JSON parse error: %v", err))
			_ = s.writeResponseError(nil, codeParseError, "Parse error", nil)
			continue
		}

		s.Trace(fmt.Sprintf("Serve: dispatching method: %s with ID: %v", req.Method, req.ID))
		switch req.Method {
		case "initialize":
			s.handleInitialize(&req, dec)
		case "viewport/update":
			s.handleViewportUpdate(ctx, &req, dec)
		case "viewport/clear":
			s.handleViewportClear(&req, dec)
		case "decoration/activate":
			s.handleActivate(ctx, &req, dec)
		case "shutdown":
			s.respond(&req, struct{}{})
			s.Trace("Serve: shutdown requested")
			return nil
		default:
			s.Trace("Serve: method not found")
			if req.ID != nil {
				_ = s.writeResponseError(req.ID, codeMethodNotFound, "Method not found", req.Method)
			}
		}
	}
}

// ---- Handlers ----

func (s *Server) handleInitialize(req *jsonrpcRequest, dec *decorator.Decorator) {
	registry := dec.Registry()
	result := initializeResult{
		ProtocolVersion: ProtocolVersion,
		MaxLineLength:   registry.MaxLineLength(),
	}
	for _, h := range registry.Handlers() {
		result.Handlers = append(result.Handlers, handlerInfo{Name: h.Name(), Priority: h.Matcher().Priority()})
	}
	s.respond(req, result)
}

func (s *Server) handleViewportUpdate(ctx context.Context, req *jsonrpcRequest, dec *decorator.Decorator) {
	var ev decorator.Event
	if err := json.Unmarshal(req.Params, &ev); err != nil {
		s.respondError(req, codeInvalidParams, "Invalid params", err.Error())
		return
	}
	if ev.Kind == "" {
		ev.Kind = decorator.EventContent
	}

	applied, err := dec.Update(ctx, ev)
	if err != nil {
		s.logger.Error("viewport update failed", "seq", ev.Seq, "err", err)
		s.resetBatch()
		s.respondError(req, codeInternalError, "Internal error", err.Error())
		return
	}
	if applied {
		s.flush(ev.Seq)
	}
	s.respond(req, updateResult{Seq: ev.Seq, Decorations: dec.Len(), Stale: !applied})
}

func (s *Server) handleViewportClear(req *jsonrpcRequest, dec *decorator.Decorator) {
	dec.Clear()
	s.flush(0)
	s.respond(req, struct{}{})
}

func (s *Server) handleActivate(ctx context.Context, req *jsonrpcRequest, dec *decorator.Decorator) {
	var p activateParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		s.respondError(req, codeInvalidParams, "Invalid params", err.Error())
		return
	}
	if err := dec.Activate(ctx, p.ID); err != nil {
		if errors.Is(err, errors.ErrUnknownDecoration) {
			s.respondError(req, codeInvalidParams, "Unknown decoration", p.ID)
			return
		}
		s.respondError(req, codeInternalError, "Internal error", err.Error())
		return
	}
	s.respond(req, map[string]bool{"activated": true})
}

// flush sends the overlay changes collected since the last flush.
func (s *Server) flush(seq uint64) {
	if len(s.attach) == 0 && len(s.detach) == 0 {
		return
	}
	params := changedParams{Seq: seq, Attach: s.attach, Detach: s.detach}
	if params.Attach == nil {
		params.Attach = []decorator.Decoration{}
	}
	if params.Detach == nil {
		params.Detach = []int{}
	}
	s.resetBatch()
	if err := s.writeNotification("decorations/changed", params); err != nil {
		s.logger.Error("could not send decorations", "seq", seq, "err", err)
	}
}

func (s *Server) resetBatch() {
	s.attach, s.detach = nil, nil
}

// ---- Writers ----

// respond answers req unless it is a notification.
func (s *Server) respond(req *jsonrpcRequest, result any) {
	if req.ID == nil {
		return
	}
	_ = s.writeJSON(jsonrpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func (s *Server) respondError(req *jsonrpcRequest, code int, msg string, data any) {
	if req.ID == nil {
		s.logger.Warn("error in notification", "method", req.Method, "message", msg, "data", data)
		return
	}
	_ = s.writeResponseError(req.ID, code, msg, data)
}

func (s *Server) writeResponseError(id any, code int, msg string, data any) error {
	s.Trace(fmt.Sprintf("writeResponseError: code=%d, msg=%s, data=%+v", code, msg, data))
	return s.writeJSON(jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &jsonrpcError{Code: code, Message: msg, Data: data},
	})
}

func (s *Server) writeNotification(method string, params any) error {
	// Notifications have no id.
	return s.writeJSON(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
}

func (s *Server) writeJSON(obj any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		s.Trace(fmt.Sprintf("writeJSON: marshal error: %v", err))
		return errors.Wrapf(err, "failed to serialize JSON-RPC message")
	}
	s.Trace(fmt.Sprintf("writeJSON: %s", data))
	if err := s.transport.WriteMessage(data); err != nil {
		s.Trace(fmt.Sprintf("writeJSON: write error: %v", err))
		return err
	}
	return nil
}
