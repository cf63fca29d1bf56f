package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/symbiosis/pkg/export"
)

const testCase = `name: two-firms
firms: [Smelter, Grid]
wastes: [heat]
inputs: [electricity]
supply: [[100], [0]]
demand: [[0], [80]]
distance: [[0, 10], [10, 0]]
`

const testConfig = `synergies:
  - {name: scrap_polymer, enabled: false}
logging:
  level: error
`

func setup(t *testing.T) (dir, casePath, cfg string) {
	t.Helper()
	dir = t.TempDir()
	casePath = filepath.Join(dir, "two-firms.yaml")
	cfg = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(casePath, []byte(testCase), 0o644))
	require.NoError(t, os.WriteFile(cfg, []byte(testConfig), 0o644))
	return dir, casePath, cfg
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestOptimizeCommand(t *testing.T) {
	dir, casePath, cfg := setup(t)
	out := filepath.Join(dir, "result.json")
	stdout := execute(t, "optimize", "--config", cfg, "--case", casePath, "--out", out)

	assert.Contains(t, stdout, "status:    optimal")
	assert.Contains(t, stdout, "Smelter -> Grid")
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stream": "heat_electricity"`)
}

func TestMonteCarloCommand(t *testing.T) {
	dir, casePath, cfg := setup(t)
	outDir := filepath.Join(dir, "mc")
	stdout := execute(t, "montecarlo", "--config", cfg, "--case", casePath,
		"--out-dir", outDir, "--scenarios", "8", "--variation", "5", "--distribution", "normal", "--seed", "3")

	assert.Contains(t, stdout, "8 scenarios, 0 not optimal")
	assert.Contains(t, stdout, "robust")
	for _, f := range []string{export.RunsFile, export.ArcsFile, export.RobustnessFile, export.SummaryFile} {
		_, err := os.Stat(filepath.Join(outDir, f))
		require.NoError(t, err, f)
	}
}
