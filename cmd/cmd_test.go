package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rcpsched/config"
)

const chain = `mode ma duration 3
mode mb duration 2
activity a ma
activity b mb
temporal a b
`

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestDataConvertsFormats(t *testing.T) {
	path := writeFile(t, "chain.txt", chain)
	out := run(t, "data", "--format", "yaml", path)
	assert.Contains(t, out, "activities:")
	assert.Contains(t, out, "name: a")

	yamlPath := writeFile(t, "chain.yaml", out)
	text := run(t, "data", "--format", "text", yamlPath)
	assert.Contains(t, text, "temporal a b type CS\n")
}

func TestSolveAndListRuns(t *testing.T) {
	dir := t.TempDir()
	cfgFile := writeFile(t, "config.yaml", "logging:\n  backend: jsonl\n  path: "+filepath.Join(dir, "runs.jsonl")+"\n")
	inst := writeFile(t, "chain.txt", chain)
	initial := writeFile(t, "initial.txt", "source ---\na ---\nb ---\nsink ---\n")

	out := run(t, "solve", "-c", cfgFile, "--iteration", "5", "--time", "30", "--initial", initial, inst)
	assert.Contains(t, out, "--- best solution ---")
	assert.Contains(t, out, "objective value = 0\n")

	runs := run(t, "runs", "-c", cfgFile, "--feasible", "yes", "--instance", "chain.txt")
	lines := strings.Split(strings.TrimSpace(runs), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "chain.txt")
}

func TestApplyFlags(t *testing.T) {
	fs := pflag.NewFlagSet("solve", pflag.ContinueOnError)
	var o solveOptions
	fs.Int64Var(&o.seed, "seed", 1, "")
	fs.IntVar(&o.tenure, "tenure", 1, "")
	fs.Float64Var(&o.timeLimit, "time", 600, "")
	require.NoError(t, fs.Parse([]string{"--seed", "9", "--time", "1.5"}))

	s := config.DefaultSolver()
	s.Tenure = 4
	applyFlags(fs, o, &s)
	assert.Equal(t, int64(9), s.Seed)
	assert.Equal(t, 1.5, s.TimeLimitSeconds)
	assert.Equal(t, 4, s.Tenure, "unset flags keep the configured value")
}
