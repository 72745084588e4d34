package link

import (
	_ "embed"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/m4xw311/termlinks/errors"
)

//go:embed tlds.txt
var builtinTLDs string

// DefaultTLDs returns the built-in list of top-level domain labels.
func DefaultTLDs() []string {
	return parseTLDs(builtinTLDs)
}

// LoadTLDs reads a top-level domain list, one label per line. Blank lines
// and lines starting with # are skipped.
func LoadTLDs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read TLD list")
	}
	tlds := parseTLDs(string(data))
	if len(tlds) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "TLD list %s is empty", path)
	}
	return tlds, nil
}

func parseTLDs(data string) []string {
	var tlds []string
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tlds = append(tlds, strings.ToLower(line))
	}
	return tlds
}

// sortTLDs returns a deduplicated copy ordered longest first, ties
// alphabetical. Alternation in the URL pattern prefers earlier branches, so
// a short label that prefixes a longer one ("co", "com") must come later.
func sortTLDs(tlds []string) []string {
	sorted := slices.Clone(tlds)
	slices.SortFunc(sorted, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	return slices.Compact(sorted)
}

func tldAlternation(tlds []string) string {
	sorted := sortTLDs(tlds)
	quoted := make([]string, len(sorted))
	for i, tld := range sorted {
		quoted[i] = regexp.QuoteMeta(tld)
	}
	return strings.Join(quoted, "|")
}
