package action

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/m4xw311/termlinks/config"
	"github.com/m4xw311/termlinks/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

func recordingRunner(calls *[]call, err error) Runner {
	return func(ctx context.Context, name string, args ...string) error {
		*calls = append(*calls, call{name: name, args: args})
		return err
	}
}

func TestOSOpenCommand(t *testing.T) {
	assert.Equal(t, []string{"open"}, OSOpenCommand("darwin"))
	assert.Equal(t, []string{"xdg-open"}, OSOpenCommand("linux"))
	assert.Equal(t, []string{"xdg-open"}, OSOpenCommand("freebsd"))
	assert.Equal(t, []string{"rundll32", "url.dll,FileProtocolHandler"}, OSOpenCommand("windows"))
}

func TestOSExecutorWindowsKeepsEditorURIWhole(t *testing.T) {
	var calls []call
	exec, err := newOSExecutor("windows", "phpstorm", "", recordingRunner(&calls, nil))
	require.NoError(t, err)

	require.NoError(t, exec.OpenWithLineEditor(context.Background(), `C:\src\main.go`, "42"))
	require.Len(t, calls, 1)
	assert.Equal(t, "rundll32", calls[0].name)
	assert.Equal(t, []string{"url.dll,FileProtocolHandler", "phpstorm://open?file=C%3A%5Csrc%5Cmain.go&line=42"}, calls[0].args)
	assert.NotContains(t, calls[0].name, "cmd")
}

func TestEditorURI(t *testing.T) {
	assert.Equal(t, "phpstorm://open?file=%2Fhome%2Fu%2Fmain.go&line=42",
		EditorURI("phpstorm", "/home/u/main.go", "42"))
	assert.Equal(t, "idea://open?file=%2Ftmp%2Fa+b.txt",
		EditorURI("idea", "/tmp/a b.txt", ""))
}

func TestOSExecutorOpenCommand(t *testing.T) {
	var calls []call
	exec, err := NewOSExecutor("phpstorm", `firefox --new-tab "-P work"`, recordingRunner(&calls, nil))
	require.NoError(t, err)

	require.NoError(t, exec.OpenExternal(context.Background(), "http://example.com"))
	require.Len(t, calls, 1)
	assert.Equal(t, "firefox", calls[0].name)
	assert.Equal(t, []string{"--new-tab", "-P work", "http://example.com"}, calls[0].args)

	require.NoError(t, exec.OpenWithLineEditor(context.Background(), "/src/a.go", "7"))
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"--new-tab", "-P work", "phpstorm://open?file=%2Fsrc%2Fa.go&line=7"}, calls[1].args)
}

func TestOSExecutorFailure(t *testing.T) {
	var calls []call
	boom := stderrors.New("no display")
	exec, err := NewOSExecutor("phpstorm", "opener", recordingRunner(&calls, boom))
	require.NoError(t, err)

	err = exec.OpenExternal(context.Background(), "file:///x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "could not open file:///x")
}

func TestOSExecutorInvalidCommand(t *testing.T) {
	_, err := NewOSExecutor("phpstorm", `firefox "unterminated`, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestDryRunAndLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	d := DryRun{Logger: logger}
	require.NoError(t, d.OpenExternal(context.Background(), "http://example.com"))
	require.NoError(t, d.OpenWithLineEditor(context.Background(), "/a.go", "3"))
	LogNotifier{Logger: logger}.ReportWarning("This windows path does not exist")

	out := buf.String()
	assert.Contains(t, out, "target=http://example.com")
	assert.Contains(t, out, "file=/a.go line=3")
	assert.Contains(t, out, `level=WARN msg="This windows path does not exist"`)
}

func TestFromConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	cfg := config.Default()

	exec, err := FromConfig(cfg, true, logger)
	require.NoError(t, err)
	assert.IsType(t, DryRun{}, exec)

	cfg.OpenCommand = "firefox --new-tab"
	exec, err = FromConfig(cfg, false, logger)
	require.NoError(t, err)
	assert.IsType(t, &OSExecutor{}, exec)

	cfg.OpenCommand = "'unterminated"
	_, err = FromConfig(cfg, false, logger)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}
