package link

import (
	"context"
	"strings"

	"github.com/m4xw311/termlinks/action"
	"github.com/m4xw311/termlinks/errors"
)

const URLPriority = 7

// Pieces of the URL grammar. Host and domain labels admit the non-ASCII
// range so internationalized names match.
const (
	urlProtocol = `(?:(?:[a-z]+:)?//)?`
	urlAuth     = `(?:\S+(?::\S*)?@)?`
	urlIPv4     = `(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]\d|\d)(?:\.(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]\d|\d)){3}`
	urlHost     = `(?:(?:[a-z\x{00a1}-\x{ffff}0-9][-_]*)*[a-z\x{00a1}-\x{ffff}0-9]+)`
	urlDomain   = `(?:\.(?:[a-z\x{00a1}-\x{ffff}0-9]-*)*[a-z\x{00a1}-\x{ffff}0-9]+)*`
	urlPort     = `(?::\d{2,5})?`
	urlPath     = `(?:[/?#][^\s"]*)?`
)

// URLPattern builds the case-insensitive URL pattern for the given TLDs.
func URLPattern(tlds []string) string {
	tld := `(?:\.(?:` + tldAlternation(tlds) + `))\.?`
	return `(?i)(?:` + urlProtocol + `|www\.)` + urlAuth +
		`(?:localhost|` + urlIPv4 + `|` + urlHost + urlDomain + tld + `)` +
		urlPort + urlPath
}

// URLHandler opens web addresses in the browser.
type URLHandler struct {
	matcher *Matcher
	exec    action.Executor
}

func NewURLHandler(exec action.Executor, tlds []string) (*URLHandler, error) {
	if len(tlds) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidHandler, "url handler needs at least one TLD")
	}
	m, err := NewMatcher(URLPattern(tlds), URLPriority)
	if err != nil {
		return nil, errors.Wrapf(err, "url handler")
	}
	m.accept = urlBoundary
	return &URLHandler{matcher: m, exec: exec}, nil
}

// urlBoundary rejects a scheme-less match glued to the token before it,
// such as the "run.sh" of "~/run.sh" or the "b.com" of "a/b.com".
func urlBoundary(line string, start, end int) bool {
	if start == 0 || strings.Contains(line[start:end], "://") {
		return true
	}
	c := line[start-1]
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return false
	case c == '_', c == '/', c == '\\', c == '.', c == '-', c == '~':
		return false
	}
	return true
}

func (h *URLHandler) Name() string { return "url" }

func (h *URLHandler) Matcher() *Matcher { return h.matcher }

// Convert adds http:// to addresses written without a scheme.
func (h *URLHandler) Convert(raw string) string {
	switch {
	case strings.Contains(raw, "://"):
		return raw
	case strings.HasPrefix(raw, "//"):
		return "http:" + raw
	default:
		return "http://" + raw
	}
}

func (h *URLHandler) Href(target string) string { return target }

func (h *URLHandler) Handle(ctx context.Context, target string) error {
	return h.exec.OpenExternal(ctx, target)
}
