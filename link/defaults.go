package link

import (
	"github.com/m4xw311/termlinks/action"
	"github.com/m4xw311/termlinks/config"
)

// DefaultHandlers builds the built-in handlers enabled in cfg. Embedders can
// append their own Handler implementations before calling NewRegistry.
func DefaultHandlers(cfg *config.Config, exec action.Executor, notifier action.Notifier) ([]Handler, error) {
	var handlers []Handler
	if cfg.HandlerEnabled(config.HandlerURL) {
		tlds := DefaultTLDs()
		if cfg.TLDsFile != "" {
			var err error
			if tlds, err = LoadTLDs(cfg.TLDsFile); err != nil {
				return nil, err
			}
		}
		h, err := NewURLHandler(exec, tlds)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	if cfg.HandlerEnabled(config.HandlerUnixPath) {
		handlers = append(handlers, NewUnixPathHandler(exec))
	}
	if cfg.HandlerEnabled(config.HandlerWindowsPath) {
		handlers = append(handlers, NewWindowsPathHandler(exec, notifier, cfg.StatTimeout, nil))
	}
	return handlers, nil
}

// NewDefaultRegistry is DefaultHandlers followed by NewRegistry with the
// scan options from cfg.
func NewDefaultRegistry(cfg *config.Config, exec action.Executor, notifier action.Notifier) (*Registry, error) {
	handlers, err := DefaultHandlers(cfg, exec, notifier)
	if err != nil {
		return nil, err
	}
	return NewRegistry(Options{MaxLineLength: cfg.MaxLineLength, IgnorePaths: cfg.IgnorePaths}, handlers...)
}
