package link

import (
	"context"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/m4xw311/termlinks/action"
)

// WindowsPathPattern matches drive, \\ and ~\ rooted paths. Wrapped in
// double quotes, a path may also contain whitespace.
const WindowsPathPattern = `(?:(?:[a-zA-Z]:|\\|~)\\[\w\-()\\.]+|"(?:[a-zA-Z]:|\\|~)\\[\w\s\-()\\.]+")`

// MissingWindowsPath is the warning reported when an activated path does
// not exist.
const MissingWindowsPath = "This windows path does not exist"

// WindowsPathHandler opens Windows paths with the system opener once it has
// checked that they exist. It has no explicit priority, so URLs and POSIX
// paths win any overlap.
type WindowsPathHandler struct {
	matcher  *Matcher
	exec     action.Executor
	notifier action.Notifier
	timeout  time.Duration
	stat     func(path string) error
}

// NewWindowsPathHandler returns a handler whose existence check gives up
// after timeout. A nil stat uses os.Stat.
func NewWindowsPathHandler(exec action.Executor, notifier action.Notifier, timeout time.Duration, stat func(string) error) *WindowsPathHandler {
	if stat == nil {
		stat = func(path string) error {
			_, err := os.Stat(path)
			return err
		}
	}
	return &WindowsPathHandler{
		matcher:  MustMatcher(WindowsPathPattern, 0),
		exec:     exec,
		notifier: notifier,
		timeout:  timeout,
		stat:     stat,
	}
}

func (h *WindowsPathHandler) Name() string { return "windows_path" }

func (h *WindowsPathHandler) Matcher() *Matcher { return h.matcher }

// Convert strips the quotes and expands a leading "~".
func (h *WindowsPathHandler) Convert(raw string) string {
	return Expand(strings.ReplaceAll(raw, `"`, ""))
}

// Href builds a file URI: file:///C:/Program%20Files/x for drive paths and
// file://server/share/x for UNC paths.
func (h *WindowsPathHandler) Href(target string) string {
	p := strings.ReplaceAll(target, `\`, "/")
	u := url.URL{Scheme: "file"}
	if rest, ok := strings.CutPrefix(p, "//"); ok {
		host, path, _ := strings.Cut(rest, "/")
		u.Host, u.Path = host, "/"+path
		return u.String()
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u.Path = p
	return u.String()
}

// Handle reports a warning and does nothing when target does not exist.
func (h *WindowsPathHandler) Handle(ctx context.Context, target string) error {
	if !h.exists(ctx, target) {
		h.notifier.ReportWarning(MissingWindowsPath)
		return nil
	}
	return h.exec.OpenExternal(ctx, "file://"+target)
}

// exists runs the stat off the caller's goroutine so a slow network drive
// cannot hold the caller past the timeout. A check that times out counts as
// missing.
func (h *WindowsPathHandler) exists(ctx context.Context, path string) bool {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- h.stat(path) }()

	select {
	case err := <-result:
		return err == nil
	case <-ctx.Done():
		return false
	}
}
