package link

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/m4xw311/termlinks/errors"
)

// DefaultMaxLineLength is used when Options.MaxLineLength is not positive.
const DefaultMaxLineLength = 4096

type Options struct {
	// MaxLineLength bounds the bytes of each line that are scanned.
	MaxLineLength int
	// IgnorePaths are doublestar globs matched against span targets.
	IgnorePaths []string
}

// Registry is the ordered, read-only set of handlers used to scan lines.
// It is safe for concurrent use.
type Registry struct {
	handlers      []Handler
	byName        map[string]Handler
	maxLineLength int
	ignore        []string
}

// NewRegistry validates handlers and orders them by descending priority.
// Handlers with equal priority keep the order they were given in, which is
// also the order in which they win overlaps against each other.
func NewRegistry(opts Options, handlers ...Handler) (*Registry, error) {
	r := &Registry{
		byName:        make(map[string]Handler, len(handlers)),
		maxLineLength: opts.MaxLineLength,
	}
	if r.maxLineLength <= 0 {
		r.maxLineLength = DefaultMaxLineLength
	}
	for i, h := range handlers {
		if h == nil {
			return nil, errors.Wrapf(errors.ErrInvalidHandler, "handler %d is nil", i)
		}
		name := h.Name()
		if name == "" {
			return nil, errors.Wrapf(errors.ErrInvalidHandler, "handler %d has no name", i)
		}
		if _, dup := r.byName[name]; dup {
			return nil, errors.Wrapf(errors.ErrInvalidHandler, "handler %q registered twice", name)
		}
		if !h.Matcher().valid() {
			return nil, errors.Wrapf(errors.ErrInvalidHandler, "handler %q has no pattern", name)
		}
		r.byName[name] = h
		r.handlers = append(r.handlers, h)
	}
	for _, pattern := range opts.IgnorePaths {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "invalid ignore pattern %q", pattern)
		}
		r.ignore = append(r.ignore, pattern)
	}
	slices.SortStableFunc(r.handlers, func(a, b Handler) int {
		return cmp.Compare(b.Matcher().Priority(), a.Matcher().Priority())
	})
	return r, nil
}

// Handlers returns the handlers in resolution order.
func (r *Registry) Handlers() []Handler {
	return slices.Clone(r.handlers)
}

func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.byName[name]
	return h, ok
}

func (r *Registry) MaxLineLength() int { return r.maxLineLength }

// Scan returns the links of line, sorted by start offset and pairwise
// disjoint. Where spans overlap, the one whose handler comes first in
// resolution order wins; between spans of the same handler, the earlier and
// then the longer one wins. Only the first MaxLineLength bytes are scanned;
// a span reaching the cut may continue past it and is dropped.
func (r *Registry) Scan(line string) []Span {
	full := len(line)
	line = truncate(line, r.maxLineLength)
	cut := len(line) < full

	// Handlers are in resolution order and each matcher reports spans left
	// to right, so candidates arrive already ordered by precedence.
	var accepted []Span
	for _, h := range r.handlers {
		for _, s := range h.Matcher().Find(line) {
			s.Handler = h
			if cut && s.End == len(line) {
				continue
			}
			if r.ignored(s) {
				continue
			}
			if !slices.ContainsFunc(accepted, s.Overlaps) {
				accepted = append(accepted, s)
			}
		}
	}
	slices.SortFunc(accepted, func(a, b Span) int { return cmp.Compare(a.Start, b.Start) })
	return accepted
}

var lineSuffix = regexp.MustCompile(`:\d+$`)

func (r *Registry) ignored(s Span) bool {
	if len(r.ignore) == 0 {
		return false
	}
	target := strings.ReplaceAll(s.Target(), `\`, "/")
	target = lineSuffix.ReplaceAllString(target, "")
	for _, pattern := range r.ignore {
		if ok, _ := doublestar.Match(pattern, target); ok {
			return true
		}
	}
	return false
}

// truncate cuts line to at most max bytes without splitting a rune.
func truncate(line string, max int) string {
	if len(line) <= max {
		return line
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut]
}
