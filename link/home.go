package link

import (
	"strings"

	"github.com/mitchellh/go-homedir"
)

// Expand replaces a leading "~" with the invoking user's home directory.
// Only the "~" is replaced; the rest of the path is kept as written so that
// Collapse restores the original text. Paths that cannot be expanded are
// returned unchanged.
func Expand(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	if len(path) > 1 && path[1] != '/' && path[1] != '\\' {
		// "~user" forms are not supported.
		return path
	}
	home, err := homedir.Dir()
	if err != nil || home == "" {
		return path
	}
	return home + path[1:]
}

// Collapse is the inverse of Expand: a path inside the home directory is
// rewritten with a leading "~".
func Collapse(path string) string {
	home, err := homedir.Dir()
	if err != nil || home == "" {
		return path
	}
	if path == home {
		return "~"
	}
	rest, ok := strings.CutPrefix(path, home)
	if ok && (strings.HasPrefix(rest, "/") || strings.HasPrefix(rest, `\`)) {
		return "~" + rest
	}
	return path
}
