package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"CascadeBandit/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Arms struct {
		PrimaryProba  []float64 `yaml:"primary_proba"`
		RepeatedProba []float64 `yaml:"repeated_proba"`
		Constraints   []int     `yaml:"constraints"`
	} `yaml:"arms"`
	Strategy struct {
		CascadeSteps []string `yaml:"cascade_steps"`
		Shortlist    int      `yaml:"shortlist"`
	} `yaml:"strategy"`
	Simulation struct {
		Iterations    int           `yaml:"iterations"`
		Seed          uint64        `yaml:"seed"`
		FrameInterval time.Duration `yaml:"frame_interval"`
		Accelerated   bool          `yaml:"accelerated"`
		RollingWindow int           `yaml:"rolling_window"`
	} `yaml:"simulation"`
	Failure struct {
		Enabled       bool `yaml:"enabled"`
		TriggerAt     *int `yaml:"trigger_at"` // nil means default; 0 is a valid trigger
		MinConstraint int  `yaml:"min_constraint"`
		Downtime      *int `yaml:"downtime"`
		Sentinel      int  `yaml:"sentinel"`
	} `yaml:"failure"`
	Report struct {
		Cron        string `yaml:"cron"`
		SummaryPath string `yaml:"summary_path"`
	} `yaml:"report"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`
	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		Exporter    string  `yaml:"exporter"`
		Endpoint    string  `yaml:"endpoint"`
		SampleRatio float64 `yaml:"sample_ratio"`
	} `yaml:"tracing"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SIM_ITERATIONS"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			cfg.Simulation.Iterations = n
		}
	}
	if v := os.Getenv("SIM_SEED"); v != "" {
		var seed uint64
		if _, err := fmt.Sscanf(v, "%d", &seed); err == nil {
			cfg.Simulation.Seed = seed
		}
	}
	if v := os.Getenv("SIM_ACCELERATED"); v != "" {
		cfg.Simulation.Accelerated = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("CASCADE_STEPS"); v != "" {
		cfg.Strategy.CascadeSteps = splitList(v)
	}
	if v := os.Getenv("FAILURE_ENABLED"); v != "" {
		cfg.Failure.Enabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("REPORT_CRON"); v != "" {
		cfg.Report.Cron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.ListenAddr = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		cfg.Tracing.Enabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("TRACING_EXPORTER"); v != "" {
		cfg.Tracing.Exporter = v
	}
	if v := os.Getenv("OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}

	// Defaults
	if len(cfg.Arms.PrimaryProba) == 0 {
		cfg.Arms.PrimaryProba = []float64{0.2, 0.72, 0.83, 0.7, 0.75}
	}
	if len(cfg.Arms.RepeatedProba) == 0 {
		cfg.Arms.RepeatedProba = []float64{0.8, 0.7, 0.7, 0.4, 0.71}
	}
	if len(cfg.Arms.Constraints) == 0 {
		cfg.Arms.Constraints = []int{1000, 100, 75, 120, 50}
	}
	if len(cfg.Strategy.CascadeSteps) == 0 {
		cfg.Strategy.CascadeSteps = []string{"repeated", "primary"}
	}
	if cfg.Strategy.Shortlist == 0 {
		cfg.Strategy.Shortlist = 5
	}
	if cfg.Simulation.Iterations == 0 {
		cfg.Simulation.Iterations = 400
	}
	if cfg.Simulation.FrameInterval == 0 {
		cfg.Simulation.FrameInterval = 100 * time.Millisecond
	}
	if cfg.Simulation.RollingWindow == 0 {
		cfg.Simulation.RollingWindow = 50
	}
	if cfg.Failure.TriggerAt == nil {
		cfg.Failure.TriggerAt = intPtr(139)
	}
	if cfg.Failure.MinConstraint == 0 {
		cfg.Failure.MinConstraint = 41
	}
	if cfg.Failure.Downtime == nil {
		cfg.Failure.Downtime = intPtr(40)
	}
	if cfg.Failure.Sentinel == 0 {
		cfg.Failure.Sentinel = -100
	}
	if cfg.Report.Cron == "" {
		cfg.Report.Cron = "@every 5s"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/cascade_bandit.db"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "cascade-bandit"
	}
	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = "stdout"
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}

	return cfg, nil
}

// Validate checks that the experiment is well formed.
func (c *Config) Validate() error {
	n := len(c.Arms.PrimaryProba)
	if len(c.Arms.RepeatedProba) != n {
		return fmt.Errorf("arms.repeated_proba has %d entries, want %d", len(c.Arms.RepeatedProba), n)
	}
	if len(c.Arms.Constraints) != n {
		return fmt.Errorf("arms.constraints has %d entries, want %d", len(c.Arms.Constraints), n)
	}
	for i := 0; i < n; i++ {
		if p := c.Arms.PrimaryProba[i]; p < 0 || p > 1 {
			return fmt.Errorf("arms.primary_proba[%d] = %v must be in [0,1]", i, p)
		}
		if p := c.Arms.RepeatedProba[i]; p < 0 || p > 1 {
			return fmt.Errorf("arms.repeated_proba[%d] = %v must be in [0,1]", i, p)
		}
	}
	if _, err := c.StepKinds(); err != nil {
		return err
	}
	if c.Strategy.Shortlist < 0 {
		return fmt.Errorf("strategy.shortlist must not be negative")
	}
	if c.Simulation.Iterations <= 0 {
		return fmt.Errorf("simulation.iterations must be positive")
	}
	if c.Simulation.FrameInterval < 0 {
		return fmt.Errorf("simulation.frame_interval must not be negative")
	}
	if c.Simulation.RollingWindow <= 0 {
		return fmt.Errorf("simulation.rolling_window must be positive")
	}
	if c.Failure.TriggerAt != nil && *c.Failure.TriggerAt < 0 {
		return fmt.Errorf("failure.trigger_at must not be negative")
	}
	if c.Failure.Downtime == nil || *c.Failure.Downtime <= 0 {
		return fmt.Errorf("failure.downtime must be positive")
	}
	if c.Failure.Sentinel > 0 {
		return fmt.Errorf("failure.sentinel must not be positive")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be in [0,1]")
	}
	switch strings.ToLower(c.Tracing.Exporter) {
	case "stdout", "otlp", "otlpgrpc":
	default:
		return fmt.Errorf("tracing.exporter %q is not supported", c.Tracing.Exporter)
	}
	return nil
}

// StepKinds parses strategy.cascade_steps.
func (c *Config) StepKinds() ([]model.StepKind, error) {
	if len(c.Strategy.CascadeSteps) == 0 {
		return nil, fmt.Errorf("strategy.cascade_steps is required")
	}
	kinds := make([]model.StepKind, 0, len(c.Strategy.CascadeSteps))
	for _, s := range c.Strategy.CascadeSteps {
		k, err := model.ParseStepKind(strings.ToLower(strings.TrimSpace(s)))
		if err != nil {
			return nil, fmt.Errorf("strategy.cascade_steps: %w", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intPtr(v int) *int { return &v }
