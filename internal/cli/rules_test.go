package cli

import (
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/renewal/internal/ir"
)

const kycRules = `rule: kyc_category: {
	track:           "form_submission"
	days:            30
	entity_category: 9
	rank:            3
}

rule: kyc_risk_category: {
	track:           "form_submission"
	days:            60
	risk_tier:       2
	entity_category: 9
	rank:            1
}
`

type rulesResponse struct {
	Status string    `json:"status"`
	Data   []ir.Rule `json:"data"`
}

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kyc.cue")
	writeFile(t, path, content)
	return path
}

func listRules(t *testing.T, db string, extra ...string) []ir.Rule {
	t.Helper()
	args := append([]string{"rules", "list", "--db", db, "--tenant", "1", "--format", "json"}, extra...)
	out, err := execute(t, args...)
	require.NoError(t, err)
	var resp rulesResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Data
}

func TestRulesImport(t *testing.T) {
	db := filepath.Join(t.TempDir(), "renewal.db")
	file := writeRules(t, kycRules)

	out, err := execute(t, "rules", "import", file, "--db", db, "--tenant", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 rule(s) from 1 file(s)")
	assert.Contains(t, out, "kyc_category")
	assert.Contains(t, out, "kyc_risk_category")

	// A second import of the same rules is skipped.
	out, err = execute(t, "rules", "import", file, "--db", db, "--tenant", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 0 rule(s)")
	assert.Contains(t, out, "already active")

	assert.Len(t, listRules(t, db), 2)
}

func TestRulesImportDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.cue"), "package rules\n\nrule: status: {\n\ttrack: \"status_change\"\n\tdays: 365\n}\n")
	writeFile(t, filepath.Join(dir, "b.cue"), "package rules\n\nrule: never: {\n\ttrack: \"exclude\"\n\tentity_type: 7\n}\n")
	db := filepath.Join(t.TempDir(), "renewal.db")

	out, err := execute(t, "rules", "import", dir, "--db", db, "--tenant", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 rule(s) from 2 file(s)")
}

func TestRulesImportDryRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "renewal.db")
	file := writeRules(t, kycRules)

	out, err := execute(t, "rules", "import", file, "--db", db, "--tenant", "1", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Would import 2 rule(s)")
	assert.Empty(t, listRules(t, db))
}

func TestRulesImportCompileError(t *testing.T) {
	db := filepath.Join(t.TempDir(), "renewal.db")
	file := writeRules(t, "rule: bad: {\n\ttrack: \"status_change\"\n\tdayz: 30\n}\n")

	out, err := execute(t, "rules", "import", file, "--db", db, "--tenant", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodeCompile)
	assert.Contains(t, out, "dayz")
}

func TestRulesImportMissingPath(t *testing.T) {
	db := filepath.Join(t.TempDir(), "renewal.db")

	out, err := execute(t, "rules", "import", "/nonexistent/rules.cue", "--db", db, "--tenant", "1", "--format", "json")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCompile, resp.Error.Code)
}

func TestRulesResolve(t *testing.T) {
	db := filepath.Join(t.TempDir(), "renewal.db")
	_, err := execute(t, "rules", "import", writeRules(t, kycRules), "--db", db, "--tenant", "1")
	require.NoError(t, err)

	out, err := execute(t, "rules", "resolve", "--db", db, "--tenant", "1",
		"--risk", "2", "--type", "5", "--category", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "kyc_risk_category")

	_, err = execute(t, "rules", "resolve", "--db", db, "--tenant", "1", "--type", "5")
	require.Error(t, err, "category is required")
}

func TestRulesResolveExcluded(t *testing.T) {
	db := filepath.Join(t.TempDir(), "renewal.db")
	file := writeRules(t, "rule: never: {\n\ttrack: \"exclude\"\n\tentity_type: 7\n}\n")
	_, err := execute(t, "rules", "import", file, "--db", db, "--tenant", "1")
	require.NoError(t, err)

	out, err := execute(t, "rules", "resolve", "--db", db, "--tenant", "1", "--type", "7", "--category", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Excluded from renewal.")
}

func TestRulesDeactivate(t *testing.T) {
	db := filepath.Join(t.TempDir(), "renewal.db")
	_, err := execute(t, "rules", "import", writeRules(t, kycRules), "--db", db, "--tenant", "1")
	require.NoError(t, err)
	rules := listRules(t, db)
	require.Len(t, rules, 2)

	out, err := execute(t, "rules", "deactivate", strconv.FormatInt(rules[0].ID, 10), "--db", db, "--tenant", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "deactivated")

	assert.Len(t, listRules(t, db), 1)
	assert.Len(t, listRules(t, db, "--all"), 2)

	_, err = execute(t, "rules", "deactivate", "999", "--db", db, "--tenant", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "rules", "deactivate", "abc", "--db", db, "--tenant", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRulesListEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "renewal.db")

	out, err := execute(t, "rules", "list", "--db", db, "--tenant", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "No rules.")
}

func TestScope(t *testing.T) {
	assert.Equal(t, "*", scope(ir.Wildcard))
	assert.Equal(t, "7", scope(7))
}
