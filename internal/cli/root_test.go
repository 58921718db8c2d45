package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/renewal/internal/ir"
	"github.com/roach88/renewal/internal/store"
)

// execute runs the root command with args and returns stdout.
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

// seedDB creates a database with the feature enabled for tenant 1, one
// profile whose status changed in 2020, and a 30 day status change rule.
func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "renewal.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	changed := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.SetFeature(ctx, 1, store.FeatureRenewalTriggers, true))
	require.NoError(t, st.UpsertProfile(ctx, store.Profile{
		ID: 10, TenantID: 1, EntityType: 5, EntityCategory: 2, Active: true,
		StatusChangedAt: &changed,
	}))
	_, err = st.InsertRule(ctx, ir.Rule{
		TenantID: 1, Name: "status", Track: ir.TrackStatusChange, Days: 30,
	}, changed)
	require.NoError(t, err)
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "renewal", cmd.Use)
	assert.Contains(t, cmd.Long, "idempotent")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "schedule", "rules", "runs", "feature", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	require.NotNil(t, cmd.PersistentFlags().Lookup("db"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("tenant"))
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "runs", "list", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestConfigFileWithFlagOverride(t *testing.T) {
	db := seedDB(t)
	cfgPath := filepath.Join(t.TempDir(), "renewal.yaml")
	writeFile(t, cfgPath, "database: "+db+"\ntenant: 2\n")

	// tenant 2 has no feature row; --tenant wins over the file.
	out, err := execute(t, "feature", "status", "--config", cfgPath, "--tenant", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "enabled")
	assert.NotContains(t, out, "disabled")
}

func TestInvalidConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "renewal.yaml")
	writeFile(t, cfgPath, "page_size: -1\n")

	_, err := execute(t, "runs", "list", "--config", cfgPath, "--tenant", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
