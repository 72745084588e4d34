package terminal

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/x/ansi"
	"github.com/m4xw311/termlinks/errors"
	"github.com/m4xw311/termlinks/link"
	"golang.org/x/term"
)

// Filter rewrites lines of output with OSC 8 hyperlinks.
type Filter struct {
	registry   atomic.Pointer[link.Registry]
	hyperlinks bool
}

// New creates a Filter. With hyperlinks false it passes text through.
func New(registry *link.Registry, hyperlinks bool) *Filter {
	f := &Filter{hyperlinks: hyperlinks}
	f.registry.Store(registry)
	return f
}

// SetRegistry replaces the registry used for the following lines.
func (f *Filter) SetRegistry(r *link.Registry) {
	f.registry.Store(r)
}

// IsTerminal reports whether file is connected to a terminal.
func IsTerminal(file *os.File) bool {
	return term.IsTerminal(int(file.Fd()))
}

// Hyperlink wraps text in an OSC 8 sequence pointing at uri.
func Hyperlink(uri, text string) string {
	return "\x1b]8;;" + uri + "\x1b\\" + text + "\x1b]8;;\x1b\\"
}

// Run copies in to out line by line until EOF or until ctx is done. Every
// line is flushed as soon as it is written so interactive output is not held
// back.
func (f *Filter) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	r := bufio.NewReader(in)
	w := bufio.NewWriter(out)
	for {
		if ctx.Err() != nil {
			return w.Flush()
		}
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			body, eol := splitEOL(line)
			if _, werr := w.WriteString(f.Decorate(body) + eol); werr != nil {
				return errors.Wrapf(werr, "could not write output")
			}
			if ferr := w.Flush(); ferr != nil {
				return errors.Wrapf(ferr, "could not write output")
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "could not read input")
		}
	}
}

// Decorate returns line with its links wrapped in hyperlinks. Links are
// found on the text without escape sequences, and the escapes of the
// original line are kept around and inside the hyperlinks. Lines without
// links are returned unchanged.
func (f *Filter) Decorate(line string) string {
	if !f.hyperlinks {
		return line
	}
	plain, offsets := stripEscapes(line)
	spans := f.registry.Load().Scan(plain)
	if len(spans) == 0 {
		return line
	}

	var sb strings.Builder
	prev := 0
	for _, s := range spans {
		start, end := offsets[s.Start], offsets[s.End-1]+1
		href := s.Href()
		if href == "" {
			continue
		}
		sb.WriteString(line[prev:start])
		sb.WriteString(Hyperlink(href, line[start:end]))
		prev = end
	}
	sb.WriteString(line[prev:])
	return sb.String()
}

// stripEscapes removes escape sequences and control characters other than
// tab from line. offsets[i] is the index in line of byte i of the result.
func stripEscapes(line string) (string, []int) {
	var sb strings.Builder
	offsets := make([]int, 0, len(line))
	var state byte
	for pos := 0; pos < len(line); {
		seq, width, n, next := ansi.DecodeSequence(line[pos:], state, nil)
		if n <= 0 {
			break
		}
		if width > 0 || isText(seq) {
			sb.WriteString(seq)
			for i := range len(seq) {
				offsets = append(offsets, pos+i)
			}
		}
		state = next
		pos += n
	}
	return sb.String(), offsets
}

func isText(seq string) bool {
	if seq == "" {
		return false
	}
	c := seq[0]
	return c == '\t' || (c >= 0x20 && c != 0x7f && (c < 0x80 || c > 0x9f))
}

func splitEOL(line string) (body, eol string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	}
	return line, ""
}
