package link

import (
	"context"
	"strings"

	"github.com/m4xw311/termlinks/action"
)

const UnixPathPriority = 6

// UnixPathPattern matches /abs/path and ~/path with an optional :line
// suffix. \B keeps it from starting inside a word, as in "a/b".
const UnixPathPattern = `\B~?/[/\w.-]+(?::\d+)?`

// UnixPathHandler opens POSIX paths in the IDE at the given line.
type UnixPathHandler struct {
	matcher *Matcher
	exec    action.Executor
}

func NewUnixPathHandler(exec action.Executor) *UnixPathHandler {
	return &UnixPathHandler{
		matcher: MustMatcher(UnixPathPattern, UnixPathPriority),
		exec:    exec,
	}
}

func (h *UnixPathHandler) Name() string { return "unix_path" }

func (h *UnixPathHandler) Matcher() *Matcher { return h.matcher }

func (h *UnixPathHandler) Convert(raw string) string {
	return Expand(raw)
}

func (h *UnixPathHandler) Href(target string) string {
	file, _ := SplitLine(target)
	return "file://" + file
}

// Handle opens the file without checking that it exists; the IDE reports
// missing files itself.
func (h *UnixPathHandler) Handle(ctx context.Context, target string) error {
	file, line := SplitLine(target)
	return h.exec.OpenWithLineEditor(ctx, file, line)
}

// SplitLine splits "file:line" at the first colon. line is empty when there
// is no colon.
func SplitLine(target string) (file, line string) {
	file, line, _ = strings.Cut(target, ":")
	return file, line
}
