package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envelope mirrors api.Response with a raw payload.
type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// sqliteConfig writes a config that keeps the plant in a SQLite file, so
// state survives between command invocations.
func sqliteConfig(t *testing.T) (path, dir string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "packflow.yaml")
	cfg := "store:\n" +
		"  driver: sqlite\n" +
		"  dsn: " + filepath.Join(dir, "plant.db") + "\n" +
		"log:\n" +
		"  level: error\n" +
		"snapshot:\n" +
		"  dir: " + filepath.Join(dir, "snapshots") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path, dir
}

func TestRoot_RejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "validate-fixtures")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestSeed_IsIdempotent(t *testing.T) {
	cfg, _ := sqliteConfig(t)

	out, err := execute(t, "--config", cfg, "seed")
	require.NoError(t, err)
	assert.Equal(t, "seeded 6 instance(s), skipped 0 existing\n", out)

	out, err = execute(t, "--config", cfg, "--format", "json", "seed")
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	require.True(t, env.OK)
	var summary struct {
		Created []string `json:"created"`
		Skipped []string `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Empty(t, summary.Created)
	assert.Len(t, summary.Skipped, 6)
}

func TestSeed_FromFile(t *testing.T) {
	cfg, dir := sqliteConfig(t)
	seed := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(`
skus:
  - id: SKU-ONLY
    code: BP-NMC-12V
    name: 12V test pack
    cellsPerModule: 4
    state: Active
`), 0o600))

	out, err := execute(t, "--config", cfg, "seed", "--file", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 1 instance(s)")
}

func TestGuard_ReportsEveryStageAction(t *testing.T) {
	cfg, _ := sqliteConfig(t)
	_, err := execute(t, "--config", cfg, "seed")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "guard", "s4", "--role", "planner")
	require.NoError(t, err)
	assert.Contains(t, out, "S4 as PLANNER")
	assert.Contains(t, out, "CREATE_BATCH_PLAN")
	assert.Contains(t, out, "CANCEL_BATCH")

	out, err = execute(t, "--config", cfg, "--format", "json", "guard", "S1", "--role", "OPERATOR")
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	require.True(t, env.OK)
	var report struct {
		Stage   string `json:"stage"`
		Actions []struct {
			Action string `json:"action"`
			State  struct {
				Enabled bool   `json:"enabled"`
				Reason  string `json:"reason"`
			} `json:"state"`
		} `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "S1", report.Stage)
	require.NotEmpty(t, report.Actions)
	for _, a := range report.Actions {
		assert.False(t, a.State.Enabled, "operator may not %s", a.Action)
		assert.NotEmpty(t, a.State.Reason)
	}
}

func TestGuard_RejectsBadInput(t *testing.T) {
	_, err := execute(t, "guard", "S9")
	assert.ErrorContains(t, err, `unknown stage "S9"`)

	_, err = execute(t, "guard", "S1", "--role", "janitor")
	assert.ErrorContains(t, err, `unknown role "janitor"`)
}

func TestStep_ShowsWizardStep(t *testing.T) {
	cfg, _ := sqliteConfig(t)
	_, err := execute(t, "--config", cfg, "seed")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "step", "B-02")
	require.NoError(t, err)
	assert.Equal(t, "B-02 (batch) InProgress: EXECUTION\n", out)

	_, err = execute(t, "--config", cfg, "step", "B-99")
	require.Error(t, err)
}

func TestSnapshot_WritesToConfiguredDir(t *testing.T) {
	cfg, dir := sqliteConfig(t)
	_, err := execute(t, "--config", cfg, "seed")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "snapshot")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 6 instance(s)")

	files, err := filepath.Glob(filepath.Join(dir, "snapshots", "packflow-*.json"))
	require.NoError(t, err)
	assert.Len(t, files, 1)

	other := filepath.Join(dir, "elsewhere")
	_, err = execute(t, "--config", cfg, "snapshot", "--dir", other)
	require.NoError(t, err)
	files, err = filepath.Glob(filepath.Join(other, "packflow-*.json"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestValidateFixtures(t *testing.T) {
	out, err := execute(t, "validate-fixtures")
	require.NoError(t, err)
	assert.Equal(t, "✓ (built-in) is valid (6 instances)\n", out)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("skus:\n  - id: SKU-1\n    cellsPerModule: -3\n"), 0o600))
	_, err = execute(t, "validate-fixtures", bad)
	assert.ErrorContains(t, err, "invalid seed")
}
