package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smokeScenario = `name: cli_smoke
description: "A submission older than the rule window triggers once"
rules:
  - name: kyc
    track: form_submission
    days: 30
profiles:
  - id: 10
    type: 5
    category: 1
    cases:
      - type: questionnaire
        stage: completed
        forms:
          - ref: kyc
            submitted_at: 2024-01-01
runs:
  - at: 2024-03-01
    expect: { scanned: 1, triggered: 1 }
  - at: 2024-03-02
    expect: { scanned: 1, triggered: 0 }
assertions:
  - type: transaction_count
    count: 1
`

func scenarioDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "cli_smoke.yaml"), smokeScenario)
	return dir
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	dir := scenarioDir(t)

	out, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS cli_smoke")

	golden := filepath.Join(dir, "golden", "cli_smoke.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"outcome":"triggered"`)

	out, err = execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := scenarioDir(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	writeFile(t, filepath.Join(dir, "golden", "cli_smoke.golden"), "{}")

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL cli_smoke")
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommandFailedExpectation(t *testing.T) {
	dir := t.TempDir()
	bad := smokeScenario[:len(smokeScenario)-len("    count: 1\n")] + "    count: 2\n"
	writeFile(t, filepath.Join(dir, "cli_smoke.yaml"), bad)

	out, err := execute(t, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.False(t, resp.Data.Scenarios[0].Pass)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
}

func TestTestCommandInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.yaml"), "name: broken\n")

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandNonExistentDir(t *testing.T) {
	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "kyc-30.yaml"), "")
	writeFile(t, filepath.Join(dir, "kyc-60.yml"), "")
	writeFile(t, filepath.Join(dir, "status.yaml"), "")
	writeFile(t, filepath.Join(dir, "notes.txt"), "")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	files, err = findScenarioFiles(dir, "kyc-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("scenarios", "golden", "kyc.golden"), goldenFilePath("scenarios/kyc.yaml", "kyc"))
}
