package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CascadeBandit/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []float64{0.2, 0.72, 0.83, 0.7, 0.75}, cfg.Arms.PrimaryProba)
	assert.Equal(t, []int{1000, 100, 75, 120, 50}, cfg.Arms.Constraints)
	assert.Equal(t, 400, cfg.Simulation.Iterations)
	assert.Equal(t, 100*time.Millisecond, cfg.Simulation.FrameInterval)
	assert.Equal(t, 139, *cfg.Failure.TriggerAt)
	assert.Equal(t, 40, *cfg.Failure.Downtime)
	assert.Equal(t, -100, cfg.Failure.Sentinel)

	kinds, err := cfg.StepKinds()
	require.NoError(t, err)
	assert.Equal(t, []model.StepKind{model.StepRepeated, model.StepPrimary}, kinds)
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := writeConfig(t, `
arms:
  primary_proba: [0.1, 0.9]
  repeated_proba: [0.5, 0.5]
  constraints: [10, 20]
strategy:
  cascade_steps: [primary]
simulation:
  iterations: 25
  seed: 7
  frame_interval: 250ms
failure:
  enabled: true
  trigger_at: 12
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []int{10, 20}, cfg.Arms.Constraints)
	assert.Equal(t, 25, cfg.Simulation.Iterations)
	assert.Equal(t, uint64(7), cfg.Simulation.Seed)
	assert.Equal(t, 250*time.Millisecond, cfg.Simulation.FrameInterval)
	assert.True(t, cfg.Failure.Enabled)
	assert.Equal(t, 12, *cfg.Failure.TriggerAt)
	assert.Equal(t, 41, cfg.Failure.MinConstraint)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SIM_ITERATIONS", "12")
	t.Setenv("SIM_SEED", "99")
	t.Setenv("CASCADE_STEPS", "primary, primary")
	t.Setenv("FAILURE_ENABLED", "true")
	t.Setenv("METRICS_ADDR", ":9100")

	cfg, err := Load(writeConfig(t, "simulation:\n  iterations: 5\n"))
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Simulation.Iterations)
	assert.Equal(t, uint64(99), cfg.Simulation.Seed)
	assert.Equal(t, []string{"primary", "primary"}, cfg.Strategy.CascadeSteps)
	assert.True(t, cfg.Failure.Enabled)
	assert.Equal(t, ":9100", cfg.Metrics.ListenAddr)
}

func TestLoad_ZeroFailureValuesAreKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, "failure:\n  trigger_at: 0\n  downtime: 0\n"))
	require.NoError(t, err)

	assert.Equal(t, 0, *cfg.Failure.TriggerAt)
	assert.Equal(t, 0, *cfg.Failure.Downtime)
	assert.Error(t, cfg.Validate(), "zero downtime never restores the bank")

	*cfg.Failure.Downtime = 10
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "arms: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"length mismatch", func(c *Config) { c.Arms.Constraints = []int{1} }},
		{"probability range", func(c *Config) { c.Arms.PrimaryProba[0] = 1.2 }},
		{"unknown step", func(c *Config) { c.Strategy.CascadeSteps = []string{"token"} }},
		{"iterations", func(c *Config) { c.Simulation.Iterations = -1 }},
		{"sentinel", func(c *Config) { c.Failure.Sentinel = 5 }},
		{"negative trigger", func(c *Config) { c.Failure.TriggerAt = intPtr(-1) }},
		{"zero downtime", func(c *Config) { c.Failure.Downtime = intPtr(0) }},
		{"negative downtime", func(c *Config) { c.Failure.Downtime = intPtr(-5) }},
		{"exporter", func(c *Config) { c.Tracing.Exporter = "zipkin" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
