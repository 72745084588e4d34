// Package action performs the side effects behind an activated link:
// opening a URL or file with the system opener, or a file at a line in an IDE.
package action

import (
	"context"
	"log/slog"
	"net/url"
	"os/exec"
	"runtime"

	"github.com/m4xw311/termlinks/config"
	"github.com/m4xw311/termlinks/errors"
	"github.com/mattn/go-shellwords"
)

// Executor opens fully normalized link targets.
type Executor interface {
	OpenExternal(ctx context.Context, target string) error
	OpenWithLineEditor(ctx context.Context, file, line string) error
}

// Notifier surfaces non-fatal, user-visible warnings.
type Notifier interface {
	ReportWarning(message string)
}

// Runner starts a command. It exists so tests can observe invocations.
type Runner func(ctx context.Context, name string, args ...string) error

// OSExecutor opens targets with the platform opener or a configured command.
type OSExecutor struct {
	editorScheme string
	command      []string
	run          Runner
}

// NewOSExecutor returns an executor that opens editor links with
// editorScheme and other targets with openCommand, or with the OS default
// opener when openCommand is empty. A nil run uses os/exec.
func NewOSExecutor(editorScheme, openCommand string, run Runner) (*OSExecutor, error) {
	return newOSExecutor(runtime.GOOS, editorScheme, openCommand, run)
}

func newOSExecutor(goos, editorScheme, openCommand string, run Runner) (*OSExecutor, error) {
	command := OSOpenCommand(goos)
	if openCommand != "" {
		args, err := shellwords.Parse(openCommand)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "could not parse open_command %q: %v", openCommand, err)
		}
		if len(args) == 0 {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "open_command %q has no program", openCommand)
		}
		command = args
	}
	if run == nil {
		run = execRunner
	}
	return &OSExecutor{editorScheme: editorScheme, command: command, run: run}, nil
}

// FromConfig returns the executor for cfg, or a DryRun logging to logger
// when dryRun is set.
func FromConfig(cfg *config.Config, dryRun bool, logger *slog.Logger) (Executor, error) {
	if dryRun {
		return DryRun{Logger: logger}, nil
	}
	e, err := NewOSExecutor(cfg.EditorScheme, cfg.OpenCommand, nil)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// OSOpenCommand returns the generic 'open' command for goos:
// open on Mac, the URL protocol handler on Windows, and xdg-open elsewhere.
// Windows targets do not go through cmd.exe, which would split editor URIs
// at '&'.
func OSOpenCommand(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"open"}
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler"}
	default:
		return []string{"xdg-open"}
	}
}

func (e *OSExecutor) OpenExternal(ctx context.Context, target string) error {
	args := append(append([]string(nil), e.command[1:]...), target)
	if err := e.run(ctx, e.command[0], args...); err != nil {
		return errors.Wrapf(err, "could not open %s", target)
	}
	return nil
}

func (e *OSExecutor) OpenWithLineEditor(ctx context.Context, file, line string) error {
	return e.OpenExternal(ctx, EditorURI(e.editorScheme, file, line))
}

// EditorURI builds scheme://open?file=<file>&line=<line>. The line parameter
// is left out when line is empty.
func EditorURI(scheme, file, line string) string {
	q := url.Values{}
	q.Set("file", file)
	if line != "" {
		q.Set("line", line)
	}
	return scheme + "://open?" + q.Encode()
}

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "%s failed. Output:\n%s", name, string(out))
	}
	return nil
}

// DryRun logs the actions it is asked to perform without running anything.
type DryRun struct {
	Logger *slog.Logger
}

func (d DryRun) OpenExternal(ctx context.Context, target string) error {
	d.Logger.Info("dry run: open", "target", target)
	return nil
}

func (d DryRun) OpenWithLineEditor(ctx context.Context, file, line string) error {
	d.Logger.Info("dry run: open in editor", "file", file, "line", line)
	return nil
}

// LogNotifier writes warnings to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) ReportWarning(message string) {
	n.Logger.Warn(message)
}
