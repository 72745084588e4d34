package terminal

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/m4xw311/termlinks/action"
	"github.com/m4xw311/termlinks/link"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopExecutor struct{}

func (nopExecutor) OpenExternal(context.Context, string) error               { return nil }
func (nopExecutor) OpenWithLineEditor(context.Context, string, string) error { return nil }

type nopNotifier struct{}

func (nopNotifier) ReportWarning(string) {}

var (
	_ action.Executor = nopExecutor{}
	_ action.Notifier = nopNotifier{}
)

func newRegistry(t *testing.T) *link.Registry {
	t.Helper()
	url, err := link.NewURLHandler(nopExecutor{}, link.DefaultTLDs())
	require.NoError(t, err)
	win := link.NewWindowsPathHandler(nopExecutor{}, nopNotifier{}, time.Second, func(string) error { return fs.ErrNotExist })
	r, err := link.NewRegistry(link.Options{}, url, link.NewUnixPathHandler(nopExecutor{}), win)
	require.NoError(t, err)
	return r
}

func TestDecorate(t *testing.T) {
	f := New(newRegistry(t), true)

	tests := []struct {
		name string
		line string
		want string
	}{
		{
			name: "no links",
			line: "\x1b[31mbuild failed\x1b[0m",
			want: "\x1b[31mbuild failed\x1b[0m",
		},
		{
			name: "url",
			line: "see https://example.com/x now",
			want: "see " + Hyperlink("https://example.com/x", "https://example.com/x") + " now",
		},
		{
			name: "scheme-less url",
			line: "visit example.com",
			want: "visit " + Hyperlink("http://example.com", "example.com"),
		},
		{
			name: "unix path with line",
			line: "main.go at /src/main.go:42",
			want: "main.go at " + Hyperlink("file:///src/main.go", "/src/main.go:42"),
		},
		{
			name: "windows path",
			line: `at C:\Users\x\file.txt`,
			want: "at " + Hyperlink("file:///C:/Users/x/file.txt", `C:\Users\x\file.txt`),
		},
		{
			name: "escapes kept around links",
			line: "\x1b[1merror\x1b[0m in \x1b[4m/tmp/out.log\x1b[0m",
			want: "\x1b[1merror\x1b[0m in \x1b[4m" + Hyperlink("file:///tmp/out.log", "/tmp/out.log") + "\x1b[0m",
		},
		{
			name: "escapes kept inside links",
			line: "\x1b[32mok\x1b[0m https://\x1b[1mexample.com\x1b[0m/x",
			want: "\x1b[32mok\x1b[0m " + Hyperlink("https://example.com/x", "https://\x1b[1mexample.com\x1b[0m/x"),
		},
		{
			name: "wide runes before a link",
			line: "\x1b[31m日本\x1b[0m /etc/hosts",
			want: "\x1b[31m日本\x1b[0m " + Hyperlink("file:///etc/hosts", "/etc/hosts"),
		},
		{
			name: "two links",
			line: "https://a.example.com and /etc/hosts",
			want: Hyperlink("https://a.example.com", "https://a.example.com") + " and " + Hyperlink("file:///etc/hosts", "/etc/hosts"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Decorate(tt.line))
		})
	}
}

func TestDecorateDisabled(t *testing.T) {
	f := New(newRegistry(t), false)
	line := "see https://example.com"
	assert.Equal(t, line, f.Decorate(line))
}

func TestRun(t *testing.T) {
	f := New(newRegistry(t), true)
	in := strings.NewReader("first line\r\nopen /etc/hosts\nlast https://example.com")
	var out strings.Builder

	require.NoError(t, f.Run(context.Background(), in, &out))
	want := "first line\r\n" +
		"open " + Hyperlink("file:///etc/hosts", "/etc/hosts") + "\n" +
		"last " + Hyperlink("https://example.com", "https://example.com")
	assert.Equal(t, want, out.String())
}

func TestRunStopsOnCancel(t *testing.T) {
	f := New(newRegistry(t), true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out strings.Builder
	require.NoError(t, f.Run(ctx, strings.NewReader("https://example.com\n"), &out))
	assert.Empty(t, out.String())
}

func TestSetRegistry(t *testing.T) {
	f := New(newRegistry(t), true)
	onlyURL, err := link.NewURLHandler(nopExecutor{}, link.DefaultTLDs())
	require.NoError(t, err)
	r, err := link.NewRegistry(link.Options{}, onlyURL)
	require.NoError(t, err)
	f.SetRegistry(r)
	assert.Equal(t, "/etc/hosts", f.Decorate("/etc/hosts"))
}

func TestIsTerminal(t *testing.T) {
	file, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer file.Close()
	assert.False(t, IsTerminal(file))
}

func TestStripEscapes(t *testing.T) {
	line := "a\x1b[31mb\tc\x1b]0;title\x07d"
	plain, offsets := stripEscapes(line)
	assert.Equal(t, "ab\tcd", plain)
	require.Len(t, offsets, len(plain))
	for i := range len(plain) {
		assert.Equal(t, plain[i], line[offsets[i]], "byte %d", i)
	}
}
