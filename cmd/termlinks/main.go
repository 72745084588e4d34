package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/m4xw311/termlinks/action"
	"github.com/m4xw311/termlinks/config"
	"github.com/m4xw311/termlinks/decorator"
	"github.com/m4xw311/termlinks/decorator/rpc"
	"github.com/m4xw311/termlinks/decorator/terminal"
	"github.com/m4xw311/termlinks/errors"
	"github.com/m4xw311/termlinks/link"
	"github.com/m4xw311/termlinks/mcpserver"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const version = "v0.1.0"

type options struct {
	mode            string
	configPath      string
	trace           bool
	dryRun          bool
	forceHyperlinks bool
	watch           bool
	verbose         bool
}

func main() {
	var opts options
	flag.StringVar(&opts.mode, "mode", "pipe", "Execution mode: 'pipe', 'rpc' or 'mcp'")
	flag.StringVar(&opts.configPath, "config", "", "Config file to use instead of ~/.termlinks and ./.termlinks")
	flag.BoolVar(&opts.trace, "trace", false, "Write every JSON-RPC message to rpc.trace")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Log link actions instead of running them")
	flag.BoolVar(&opts.forceHyperlinks, "force-hyperlinks", false, "Emit OSC 8 hyperlinks even when stdout is not a terminal")
	flag.BoolVar(&opts.watch, "watch", false, "Reload the configuration when it changes")
	flag.BoolVar(&opts.verbose, "v", false, "Enable debug logging")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

// app holds what every mode needs: the configuration and a way to build a
// registry whose handlers report warnings to the mode's notifier.
type app struct {
	opts   options
	logger *slog.Logger
	paths  []string
	cfg    *config.Config
}

func run(ctx context.Context, opts options, in io.Reader, out, errOut io.Writer) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	a := &app{opts: opts, logger: logger, paths: config.Paths()}
	if opts.configPath != "" {
		if _, err := os.Stat(opts.configPath); err != nil {
			return errors.Wrapf(err, "config file %s", opts.configPath)
		}
		a.paths = []string{opts.configPath}
	}
	cfg, err := config.Load(a.paths...)
	if err != nil {
		return errors.Wrapf(err, "error loading configuration")
	}
	a.cfg = cfg

	switch opts.mode {
	case "pipe":
		return a.runPipe(ctx, in, out)
	case "rpc":
		return a.runRPC(ctx, in, out)
	case "mcp":
		return a.runMCP(ctx)
	default:
		return errors.New("invalid mode '%s'. Must be 'pipe', 'rpc' or 'mcp'", opts.mode)
	}
}

// registry builds the default registry for cfg.
func (a *app) registry(cfg *config.Config, notifier action.Notifier) (*link.Registry, error) {
	exec, err := action.FromConfig(cfg, a.opts.dryRun, a.logger)
	if err != nil {
		return nil, err
	}
	return link.NewDefaultRegistry(cfg, exec, notifier)
}

// watch rebuilds the registry on every config change and passes it to set.
// It returns immediately when -watch was not given.
func (a *app) watch(ctx context.Context, notifier action.Notifier, set func(*link.Registry)) {
	if !a.opts.watch {
		return
	}
	go func() {
		err := config.Watch(ctx, a.logger, func(cfg *config.Config) {
			r, err := a.registry(cfg, notifier)
			if err != nil {
				a.logger.Error("could not rebuild handlers, keeping previous ones", "err", err)
				return
			}
			set(r)
		}, a.paths...)
		if err != nil {
			a.logger.Error("config watcher stopped", "err", err)
		}
	}()
}

func (a *app) runPipe(ctx context.Context, in io.Reader, out io.Writer) error {
	notifier := action.LogNotifier{Logger: a.logger}
	registry, err := a.registry(a.cfg, notifier)
	if err != nil {
		return err
	}
	hyperlinks := a.opts.forceHyperlinks
	if f, ok := out.(*os.File); ok && !hyperlinks {
		hyperlinks = terminal.IsTerminal(f)
	}
	filter := terminal.New(registry, hyperlinks)
	a.watch(ctx, notifier, filter.SetRegistry)
	return filter.Run(ctx, in, out)
}

// runRPC serves the host protocol on stdio. Only JSON-RPC messages are
// written to out; logs go to stderr.
func (a *app) runRPC(ctx context.Context, in io.Reader, out io.Writer) error {
	transport := rpc.NewStdioTransport(bufio.NewReader(in), bufio.NewWriter(out))
	srv := rpc.NewServer(transport, a.logger)
	if a.opts.trace {
		trace, closer, err := rpc.TraceFile("rpc.trace")
		if err != nil {
			return err
		}
		defer closer.Close()
		srv.Trace = trace
	}

	registry, err := a.registry(a.cfg, srv)
	if err != nil {
		return err
	}
	dec := decorator.New(registry, srv, srv, a.logger)
	defer dec.Close()
	a.watch(ctx, srv, dec.SetRegistry)
	return srv.Serve(ctx, dec)
}

func (a *app) runMCP(ctx context.Context) error {
	srv := mcpserver.New("termlinks", version, a.logger)
	registry, err := a.registry(a.cfg, srv)
	if err != nil {
		return err
	}
	srv.SetRegistry(registry)
	a.watch(ctx, srv, srv.SetRegistry)
	return srv.Run(ctx, mcpsdk.NewStdioTransport())
}
