package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m4xw311/termlinks/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.HandlerEnabled(HandlerWindowsPath))
}

func TestLoadLayering(t *testing.T) {
	user := writeConfig(t, t.TempDir(), `
max_line_length: 2048
editor_scheme: idea
ignore_paths: ["**/vendor/**"]
`)
	project := writeConfig(t, t.TempDir(), `
editor_scheme: vscode
stat_timeout: 2s
disabled_handlers: [windows_path]
`)

	cfg, err := Load(user, project)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.MaxLineLength)
	assert.Equal(t, "vscode", cfg.EditorScheme)
	assert.Equal(t, 2*time.Second, cfg.StatTimeout)
	assert.Equal(t, []string{"**/vendor/**"}, cfg.IgnorePaths)
	assert.False(t, cfg.HandlerEnabled(HandlerWindowsPath))
	assert.True(t, cfg.HandlerEnabled(HandlerURL))
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative line bound", "max_line_length: -1"},
		{"empty editor scheme", `editor_scheme: ""`},
		{"unknown handler", "disabled_handlers: [email]"},
		{"bad glob", `ignore_paths: ["[unclosed"]`},
		{"zero timeout", "stat_timeout: 0s"},
		{"malformed yaml", "max_line_length: [1, 2"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tc.body)
			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidConfig), err.Error())
		})
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "max_line_length: 100")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	go func() {
		done <- Watch(ctx, logger, func(cfg *Config) {
			select {
			case changes <- cfg:
			default:
			}
		}, path)
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("max_line_length: 200"), 0644))

	// A single write can surface as several events, the first of which may
	// observe a truncated file.
	deadline := time.After(5 * time.Second)
	for reloaded := false; !reloaded; {
		select {
		case cfg := <-changes:
			reloaded = cfg.MaxLineLength == 200
		case <-deadline:
			t.Fatal("no reload after config write")
		}
	}

	cancel()
	require.NoError(t, <-done)
}
