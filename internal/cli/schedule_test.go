package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRuns(t *testing.T) {
	from := time.Date(2024, time.March, 1, 1, 30, 0, 0, time.UTC)

	next, err := nextRuns("0 2 * * *", time.UTC, from, 3)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2024, time.March, 1, 2, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 2, 2, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 3, 2, 0, 0, 0, time.UTC),
	}, next)
}

func TestNextRunsSecondsAndDescriptors(t *testing.T) {
	from := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	next, err := nextRuns("30 * * * * *", time.UTC, from, 2)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 30, 0, time.UTC), next[0])
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 1, 30, 0, time.UTC), next[1])

	next, err = nextRuns("@daily", time.UTC, from, 1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC), next[0])
}

func TestNextRunsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	from := time.Date(2024, time.February, 29, 23, 30, 0, 0, time.UTC)

	next, err := nextRuns("0 2 * * *", loc, from, 1)
	require.NoError(t, err)
	assert.True(t, next[0].Equal(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2, next[0].Hour())
}

func TestScheduleDryRun(t *testing.T) {
	rootOpts := &RootOptions{Format: "json"}
	opts := &ScheduleOptions{
		RootOptions: rootOpts,
		Cron:        "0 2 * * *",
		DryRun:      true,
		Now:         func() time.Time { return time.Date(2024, time.March, 1, 3, 0, 0, 0, time.UTC) },
	}
	cmd := NewScheduleCommand(rootOpts)
	buf := newBuffer(cmd)

	require.NoError(t, runSchedule(opts, cmd))

	var resp struct {
		Status string      `json:"status"`
		Data   []time.Time `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data, 5)
	assert.True(t, resp.Data[0].Equal(time.Date(2024, time.March, 2, 2, 0, 0, 0, time.UTC)))
}

func TestScheduleDryRunText(t *testing.T) {
	out, err := execute(t, "schedule", "--cron", "@hourly", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, `Next runs of "@hourly" (UTC)`)
}

func TestScheduleErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing schedule", []string{"schedule", "--tenant", "1"}, "schedule is required"},
		{"invalid cron", []string{"schedule", "--tenant", "1", "--cron", "not a cron"}, "invalid cron expression"},
		{"missing tenant", []string{"schedule", "--cron", "@daily"}, "tenant is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCronLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	l := cronLogger{slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	l.Info("skip", "entry", 1)
	l.Error(errors.New("boom"), "panic")

	assert.Contains(t, buf.String(), "cron: skip")
	assert.Contains(t, buf.String(), "error=boom")

	quiet := cronLogger{slog.New(slog.NewTextHandler(io.Discard, nil))}
	quiet.Info("ignored")
}
