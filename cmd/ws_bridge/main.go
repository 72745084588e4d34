package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/m4xw311/termlinks/action"
	"github.com/m4xw311/termlinks/config"
	"github.com/m4xw311/termlinks/decorator"
	"github.com/m4xw311/termlinks/decorator/rpc"
	"github.com/m4xw311/termlinks/link"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	addr := flag.String("addr", ":8080", "Address to listen on")
	dryRun := flag.Bool("dry-run", false, "Log link actions instead of running them")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %+v\n", err)
		os.Exit(1)
	}
	exec, err := action.FromConfig(cfg, *dryRun, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing executor: %+v\n", err)
		os.Exit(1)
	}

	http.HandleFunc("/ws", handleWS(cfg, exec, logger))

	logger.Info("WebSocket server running", "url", "ws://localhost"+*addr+"/ws")
	if err := http.ListenAndServe(*addr, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Server stopped: %+v\n", err)
		os.Exit(1)
	}
}

// handleWS serves one Decorator per connection. Each text frame carries one
// JSON-RPC message.
func handleWS(cfg *config.Config, exec action.Executor, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("upgrade error", "err", err)
			return
		}
		defer conn.Close()

		log := logger.With("remote", conn.RemoteAddr().String())
		srv := rpc.NewServer(&wsTransport{conn: conn}, log)
		registry, err := link.NewDefaultRegistry(cfg, exec, srv)
		if err != nil {
			log.Error("could not build handlers", "err", err)
			return
		}
		dec := decorator.New(registry, srv, srv, log)
		defer dec.Close()

		log.Info("host connected")
		if err := srv.Serve(r.Context(), dec); err != nil {
			log.Error("connection closed with error", "err", err)
			return
		}
		log.Info("host disconnected")
	}
}

// wsTransport adapts a websocket connection to rpc.Transport.
type wsTransport struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	for {
		kind, msg, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}
		if kind == websocket.TextMessage {
			return msg, nil
		}
	}
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, data)
}
