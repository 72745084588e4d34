// Package link finds actionable references in lines of terminal text and
// decides which handler owns each of them.
//
// A Handler owns one link grammar. Its Matcher extracts candidate spans from
// a line; the Registry runs every handler over the line and, where spans
// from different handlers overlap, keeps the one from the handler with the
// higher priority. Handlers with equal priority resolve by registration
// order, so the outcome is the same on every run for identical input.
//
// Three handlers are built in:
//
//   - URLHandler (priority 7): URLs with or without a scheme
//   - UnixPathHandler (priority 6): /abs/path and ~/path, optional :line
//   - WindowsPathHandler (priority 0): C:\path, \\path and ~\path, optionally quoted
//
// All patterns compile with Go's RE2 engine, which runs in time linear in
// the input, and the registry bounds the number of bytes scanned per line.
package link

import (
	"context"
	"regexp"

	"github.com/m4xw311/termlinks/errors"
)

// Handler owns one link grammar, its activation side effect and, optionally,
// a normalization step (Converter).
type Handler interface {
	Name() string
	Matcher() *Matcher
	// Handle performs the side effect for an already converted target.
	Handle(ctx context.Context, target string) error
}

// Converter maps the raw matched text to the target passed to Handle.
type Converter interface {
	Convert(raw string) string
}

// Linker builds the URI a terminal should open for a converted target when
// the link is rendered as an OSC 8 hyperlink.
type Linker interface {
	Href(target string) string
}

// Span is a matched range of a scanned line. Start and End are byte offsets,
// End exclusive.
type Span struct {
	Start   int
	End     int
	Text    string
	Handler Handler
}

// Target returns the text the handler acts on: the converted text when the
// handler is a Converter, otherwise the raw text.
func (s Span) Target() string {
	if c, ok := s.Handler.(Converter); ok {
		return c.Convert(s.Text)
	}
	return s.Text
}

// Href returns the URI for an OSC 8 hyperlink, or "" if the handler does not
// provide one.
func (s Span) Href() string {
	if l, ok := s.Handler.(Linker); ok {
		return l.Href(s.Target())
	}
	return ""
}

// Activate converts the span text and hands the result to its handler.
func (s Span) Activate(ctx context.Context) error {
	return s.Handler.Handle(ctx, s.Target())
}

// Overlaps reports whether the two spans share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Matcher holds a compiled pattern and the priority of the handler using it.
type Matcher struct {
	re       *regexp.Regexp
	priority int
	// accept, if set, rejects matches that the pattern alone cannot rule out.
	accept func(line string, start, end int) bool
}

// NewMatcher compiles pattern. An empty or invalid pattern is a static
// configuration mistake and reported as ErrInvalidHandler.
func NewMatcher(pattern string, priority int) (*Matcher, error) {
	if pattern == "" {
		return nil, errors.Wrapf(errors.ErrInvalidHandler, "empty pattern")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidHandler, "invalid pattern: %v", err)
	}
	return &Matcher{re: re, priority: priority}, nil
}

// MustMatcher is like NewMatcher but panics on error.
// Use for known-good patterns at initialization.
func MustMatcher(pattern string, priority int) *Matcher {
	m, err := NewMatcher(pattern, priority)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Matcher) Priority() int { return m.priority }

func (m *Matcher) Pattern() string { return m.re.String() }

// Find returns the non-overlapping matches of the pattern in line, leftmost
// first. The Handler field of the returned spans is not set.
func (m *Matcher) Find(line string) []Span {
	var spans []Span
	for _, loc := range m.re.FindAllStringIndex(line, -1) {
		if m.accept != nil && !m.accept(line, loc[0], loc[1]) {
			continue
		}
		spans = append(spans, Span{Start: loc[0], End: loc[1], Text: line[loc[0]:loc[1]]})
	}
	return spans
}

func (m *Matcher) valid() bool {
	return m != nil && m.re != nil && m.re.String() != ""
}
