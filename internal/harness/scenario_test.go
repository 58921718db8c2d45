package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "one profile, one run"
profiles:
  - id: 1
    type: 1
    category: 1
runs:
  - at: 2024-01-01
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, DefaultTenant, s.Tenant)
	require.Len(t, s.Runs, 1)
	assert.Equal(t, "2024-01-01", s.Runs[0].At)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", minimalScenario + "asertions: []\n", "asertions"},
		{"missing name", "description: d\nruns: [{at: 2024-01-01}]\n", "name is required"},
		{"missing runs", "name: n\ndescription: d\n", "runs list is required"},
		{"bad run date", "name: n\ndescription: d\nruns: [{at: soon}]\n", "runs[0]"},
		{"bad track", "name: n\ndescription: d\nrules: [{name: r, track: weekly}]\nruns: [{at: 2024-01-01}]\n", "rules[0]"},
		{"unknown modifier field", "name: n\ndescription: d\nrules: [{name: r, track: custom_date, date_modifier: x}]\nruns: [{at: 2024-01-01}]\n", "unknown custom field"},
		{"bad profile", "name: n\ndescription: d\nprofiles: [{id: 1, type: 0, category: 1}]\nruns: [{at: 2024-01-01}]\n", "profiles[0]"},
		{"duplicate profile", "name: n\ndescription: d\nprofiles: [{id: 1, type: 1, category: 1}, {id: 1, type: 1, category: 1}]\nruns: [{at: 2024-01-01}]\n", "duplicate id"},
		{"bad case type", "name: n\ndescription: d\nprofiles: [{id: 1, type: 1, category: 1, cases: [{type: audit}]}]\nruns: [{at: 2024-01-01}]\n", "cases[0]"},
		{"mark for unknown entity", "name: n\ndescription: d\nmarks: [{entity: 9, record: 1, date: 2024-01-01, track: status_change}]\nruns: [{at: 2024-01-01}]\n", "marks[0]"},
		{"decision run out of range", minimalScenario + "assertions: [{type: decision, run: 3, entity: 1, outcome: no_match}]\n", "out of range"},
		{"bad outcome", minimalScenario + "assertions: [{type: decision, entity: 1, outcome: maybe}]\n", "unknown outcome"},
		{"unknown assertion", minimalScenario + "assertions: [{type: final_state}]\n", "unknown type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_ResolvesRulesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.cue"),
		[]byte(`rule: status: { track: "status_change", days: 5 }`), 0o644))
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario+"rules_file: rules.cue\n"), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rules.cue"), s.RulesFile)

	require.NoError(t, os.WriteFile(path, []byte(minimalScenario+"rules_file: missing.cue\n"), 0o644))
	_, err = LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules file")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
