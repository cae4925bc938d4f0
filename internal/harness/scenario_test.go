package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/engine"
)

const minimalScenario = `
name: minimal
description: One call, one assertion
record:
  calls:
    - operation: pricing.Quote
      args: [A]
      return: 3
replay:
  calls:
    - operation: pricing.Quote
      args: [A]
assertions:
  - type: outcome
    label: SUCCESS
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Empty(t, s.CorrelationID)
	require.Len(t, s.Record.Calls, 1)
	assert.Equal(t, "pricing.Quote", s.Record.Calls[0].Operation)
	assert.Equal(t, []any{"A"}, s.Record.Calls[0].Args)
	assert.Equal(t, 3, s.Record.Calls[0].Return)
	assert.Equal(t, engine.ModeTest, s.replayMode())
}

func TestParseScenario_ReplayMode(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)
	s.Replay.Mode = "serialize"
	assert.Equal(t, engine.ModeSerialize, s.replayMode())
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nassertions: [{type: unconsumed}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nassertions: [{type: unconsumed}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no assertions",
			yaml:    "name: n\ndescription: d\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "capture mode for replay",
			yaml:    "name: n\ndescription: d\nreplay: {mode: PROFILE}\nassertions: [{type: unconsumed}]\n",
			wantErr: "replay.mode must be TEST, SERIALIZE or TRANSFORM",
		},
		{
			name:    "unknown mode",
			yaml:    "name: n\ndescription: d\nreplay: {mode: REWIND}\nassertions: [{type: unconsumed}]\n",
			wantErr: "replay.mode",
		},
		{
			name:    "call without operation",
			yaml:    "name: n\ndescription: d\nrecord: {calls: [{args: [A]}]}\nassertions: [{type: unconsumed}]\n",
			wantErr: "record.calls[0]: operation is required",
		},
		{
			name:    "return and error",
			yaml:    "name: n\ndescription: d\nreplay: {calls: [{operation: op, return: 1, error: boom}]}\nassertions: [{type: unconsumed}]\n",
			wantErr: "replay.calls[0]: return and error are mutually exclusive",
		},
		{
			name:    "bad ignore kind",
			yaml:    "name: n\ndescription: d\nignore: {rename: [/a]}\nassertions: [{type: unconsumed}]\n",
			wantErr: "ignore",
		},
		{
			name:    "assertion without type",
			yaml:    "name: n\ndescription: d\nassertions: [{label: SUCCESS}]\n",
			wantErr: "assertions[0]: type is required",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nassertions: [{type: trace_contains}]\n",
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name:    "unknown label",
			yaml:    "name: n\ndescription: d\nassertions: [{type: outcome, label: FLAKY}]\n",
			wantErr: `unknown outcome label "FLAKY"`,
		},
		{
			name:    "diff without path",
			yaml:    "name: n\ndescription: d\nassertions: [{type: diff, kind: MODIFY}]\n",
			wantErr: "path is required for diff",
		},
		{
			name:    "diff with bad kind",
			yaml:    "name: n\ndescription: d\nassertions: [{type: diff, kind: SWAP, path: /a}]\n",
			wantErr: "unknown diff kind",
		},
		{
			name:    "call index out of range",
			yaml:    "name: n\ndescription: d\nassertions: [{type: call_result, index: 0, return: 1}]\n",
			wantErr: "index 0 out of range for 0 replay call(s)",
		},
		{
			name:    "recorded without operation",
			yaml:    "name: n\ndescription: d\nassertions: [{type: recorded, count: 1}]\n",
			wantErr: "operation is required for recorded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenarios_SortedByFileName(t *testing.T) {
	dir := t.TempDir()
	write := func(file, name string) {
		body := "name: " + name + "\ndescription: d\nassertions: [{type: unconsumed}]\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(body), 0o600))
	}
	write("b.yaml", "second")
	write("a.yaml", "first")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o600))

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "first", scenarios[0].Name)
	assert.Equal(t, "second", scenarios[1].Name)
}

func TestLoadScenarios_DuplicateName(t *testing.T) {
	dir := t.TempDir()
	body := []byte("name: same\ndescription: d\nassertions: [{type: unconsumed}]\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), body, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), body, 0o600))

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario name "same" already used by a.yaml`)
}

func TestLoadScenarios_ReportsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [\n"), 0o600))

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}
