package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m4xw311/termlinks/decorator/terminal"
	"github.com/m4xw311/termlinks/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestRunPipe(t *testing.T) {
	opts := options{
		mode:            "pipe",
		configPath:      writeConfig(t, "disabled_handlers: [windows_path]\n"),
		forceHyperlinks: true,
		dryRun:          true,
	}
	in := strings.NewReader("see https://example.com\nplain\n")
	var out, errOut bytes.Buffer

	require.NoError(t, run(context.Background(), opts, in, &out, &errOut))
	want := "see " + terminal.Hyperlink("https://example.com", "https://example.com") + "\nplain\n"
	assert.Equal(t, want, out.String())
}

func TestRunPipeWithoutTerminal(t *testing.T) {
	opts := options{mode: "pipe", configPath: writeConfig(t, "")}
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), opts, strings.NewReader("https://example.com\n"), &out, &bytes.Buffer{}))
	assert.Equal(t, "https://example.com\n", out.String())
}

func TestRunRPC(t *testing.T) {
	opts := options{mode: "rpc", configPath: writeConfig(t, "max_line_length: 128\n"), dryRun: true}
	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","id":2,"method":"viewport/update","params":{"seq":1,"kind":"content","lines":[{"row":0,"text":"open /etc/hosts"}]}}`,
		`{"jsonrpc":"2.0","id":3,"method":"decoration/activate","params":{"id":1}}`,
		`{"jsonrpc":"2.0","id":4,"method":"shutdown"}`,
	}, "\n") + "\n")
	var out, errOut bytes.Buffer

	require.NoError(t, run(context.Background(), opts, in, &out, &errOut))

	var msgs []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), "line %q", line)
		msgs = append(msgs, m)
	}
	require.Len(t, msgs, 5)
	assert.Equal(t, float64(128), msgs[0]["result"].(map[string]any)["maxLineLength"])
	assert.Equal(t, "decorations/changed", msgs[1]["method"])
	assert.Equal(t, map[string]any{"activated": true}, msgs[3]["result"])
	assert.Equal(t, float64(4), msgs[4]["id"])
	// The dry run executor logged the editor action instead of running it.
	assert.Contains(t, errOut.String(), "dry run: open in editor")
	assert.Contains(t, errOut.String(), "file=/etc/hosts")
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer

	err := run(ctx, options{mode: "tui", configPath: writeConfig(t, "")}, strings.NewReader(""), &out, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mode 'tui'")

	err = run(ctx, options{mode: "pipe", configPath: filepath.Join(t.TempDir(), "missing.yaml")}, strings.NewReader(""), &out, &out)
	assert.Error(t, err)

	err = run(ctx, options{mode: "pipe", configPath: writeConfig(t, "disabled_handlers: [nope]\n")}, strings.NewReader(""), &out, &out)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}
