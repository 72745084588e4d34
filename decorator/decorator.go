package decorator

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"

	"github.com/m4xw311/termlinks/action"
	"github.com/m4xw311/termlinks/errors"
	"github.com/m4xw311/termlinks/link"
	"github.com/mattn/go-runewidth"
)

type State int

const (
	Idle State = iota
	Scanning
	Decorated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Decorated:
		return "decorated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type EventKind string

const (
	EventContent EventKind = "content"
	EventResize  EventKind = "resize"
	EventScroll  EventKind = "scroll"
)

// Line is one visible line. Row is the screen row the host draws it on.
type Line struct {
	Row  int    `json:"row"`
	Text string `json:"text"`
}

// Event reports the lines currently visible. Seq must grow with every event
// the host emits.
type Event struct {
	Seq   uint64    `json:"seq"`
	Kind  EventKind `json:"kind"`
	Lines []Line    `json:"lines"`
}

// Decoration is a clickable overlay over a link. Col and Width are measured
// in terminal cells.
type Decoration struct {
	ID      int    `json:"id"`
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	Width   int    `json:"width"`
	Text    string `json:"text"`
	Handler string `json:"handler"`
	Target  string `json:"target"`

	span link.Span
}

// Span returns the match the decoration was created for.
func (d Decoration) Span() link.Span { return d.span }

// key identifies a decoration across updates so that unchanged overlays keep
// their ID and are not re-attached.
type key struct {
	row, col int
	text     string
	handler  string
}

func (d Decoration) key() key {
	return key{row: d.Row, col: d.Col, text: d.Text, handler: d.Handler}
}

// Renderer creates and removes the visual overlays on the host side.
type Renderer interface {
	Attach(d Decoration)
	Detach(d Decoration)
}

type nopRenderer struct{}

func (nopRenderer) Attach(Decoration) {}
func (nopRenderer) Detach(Decoration) {}

// Decorator tracks the decorations of one terminal view. It is driven by a
// single goroutine; only SetRegistry may be called concurrently.
type Decorator struct {
	registry atomic.Pointer[link.Registry]
	renderer Renderer
	notifier action.Notifier
	logger   *slog.Logger

	state   State
	lastSeq uint64
	seen    bool
	nextID  int
	live    map[int]Decoration
	closed  bool
}

// New returns an idle Decorator. A nil renderer discards overlay changes.
func New(registry *link.Registry, renderer Renderer, notifier action.Notifier, logger *slog.Logger) *Decorator {
	if renderer == nil {
		renderer = nopRenderer{}
	}
	d := &Decorator{
		renderer: renderer,
		notifier: notifier,
		logger:   logger,
		nextID:   1,
		live:     make(map[int]Decoration),
	}
	d.registry.Store(registry)
	return d
}

func (d *Decorator) State() State { return d.state }

// Registry returns the registry the next scan will use.
func (d *Decorator) Registry() *link.Registry { return d.registry.Load() }

// SetRegistry replaces the registry used by subsequent updates.
func (d *Decorator) SetRegistry(r *link.Registry) {
	d.registry.Store(r)
}

// Len returns the number of live decorations.
func (d *Decorator) Len() int { return len(d.live) }

// Update re-scans the lines of ev and brings the overlays in line with them.
// It reports false without touching any overlay when ev is not newer than
// the last applied event.
func (d *Decorator) Update(ctx context.Context, ev Event) (bool, error) {
	if d.closed {
		return false, errors.New("decorator is closed")
	}
	if d.seen && ev.Seq <= d.lastSeq {
		d.logger.Debug("dropping stale viewport event", "seq", ev.Seq, "last", d.lastSeq)
		return false, nil
	}

	prev := d.state
	d.state = Scanning
	registry := d.registry.Load()
	var found []Decoration
	for _, line := range ev.Lines {
		if err := ctx.Err(); err != nil {
			d.state = prev
			return false, errors.Wrapf(err, "scan of event %d interrupted", ev.Seq)
		}
		for _, s := range registry.Scan(line.Text) {
			found = append(found, Decoration{
				Row:     line.Row,
				Col:     runewidth.StringWidth(line.Text[:s.Start]),
				Width:   runewidth.StringWidth(s.Text),
				Text:    s.Text,
				Handler: s.Handler.Name(),
				Target:  s.Target(),
				span:    s,
			})
		}
	}

	d.apply(found)
	d.lastSeq, d.seen = ev.Seq, true
	d.settle()
	d.logger.Debug("viewport scanned", "seq", ev.Seq, "kind", ev.Kind, "lines", len(ev.Lines), "decorations", len(d.live))
	return true, nil
}

// apply detaches the overlays that are not in found and then attaches the
// new ones, so the host never shows an old and a new overlay at once.
func (d *Decorator) apply(found []Decoration) {
	old := make(map[key]Decoration, len(d.live))
	for _, dec := range d.live {
		old[dec.key()] = dec
	}

	next := make(map[int]Decoration, len(found))
	var attach []Decoration
	for _, dec := range found {
		if prev, ok := old[dec.key()]; ok {
			delete(old, dec.key())
			dec.ID = prev.ID
			next[dec.ID] = dec
			continue
		}
		dec.ID = d.nextID
		d.nextID++
		next[dec.ID] = dec
		attach = append(attach, dec)
	}

	for _, dec := range sortDecorations(slices.Collect(maps.Values(old))) {
		d.renderer.Detach(dec)
	}
	for _, dec := range attach {
		d.renderer.Attach(dec)
	}
	d.live = next
}

func (d *Decorator) settle() {
	if len(d.live) > 0 {
		d.state = Decorated
	} else {
		d.state = Idle
	}
}

// Decorations returns the live decorations ordered by row, then column.
func (d *Decorator) Decorations() []Decoration {
	return sortDecorations(slices.Collect(maps.Values(d.live)))
}

// Activate runs the action of a live decoration. Only an unknown id is an
// error; failures of the action itself are logged and reported as warnings.
func (d *Decorator) Activate(ctx context.Context, id int) error {
	dec, ok := d.live[id]
	if !ok {
		return errors.Wrapf(errors.ErrUnknownDecoration, "decoration %d", id)
	}
	d.logger.Debug("activating link", "id", id, "handler", dec.Handler, "target", dec.Target)
	if err := dec.span.Activate(ctx); err != nil {
		d.logger.Error("link action failed", "handler", dec.Handler, "target", dec.Target, "err", err)
		d.notifier.ReportWarning(fmt.Sprintf("Could not open %s", dec.Target))
	}
	return nil
}

// Clear detaches every overlay.
func (d *Decorator) Clear() {
	d.apply(nil)
	d.settle()
}

// Close clears the overlays; later updates fail.
func (d *Decorator) Close() {
	d.Clear()
	d.closed = true
}

func sortDecorations(decs []Decoration) []Decoration {
	slices.SortFunc(decs, func(a, b Decoration) int {
		return cmp.Or(cmp.Compare(a.Row, b.Row), cmp.Compare(a.Col, b.Col), cmp.Compare(a.ID, b.ID))
	})
	return decs
}
