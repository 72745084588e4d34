// Package terminal implements pipe mode: a filter that copies program output
// from stdin to stdout and turns every detected link into an OSC 8 hyperlink.
//
// Terminals that understand OSC 8 (iTerm2, WezTerm, kitty, Windows Terminal,
// GNOME Terminal and others) make the wrapped text clickable themselves, so
// no host integration is needed.
//
// # Usage
//
//	registry, err := link.NewDefaultRegistry(cfg, exec, notifier)
//	if err != nil {
//	    // handle error
//	}
//
//	f := terminal.New(registry, terminal.IsTerminal(os.Stdout))
//	err = f.Run(ctx, os.Stdin, os.Stdout)
//
// # Escapes
//
// Links are detected on the text with ANSI escape sequences removed, and the
// match offsets are mapped back onto the original line, so colors and other
// styling survive. A line without links is copied byte for byte.
//
// When hyperlinks are disabled (stdout is not a terminal and -force-hyperlinks
// was not given) the input is copied unchanged.
package terminal
