package search

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/whippetlabs/whippet/pkg/provider"
	"gopkg.in/yaml.v3"
)

// Config holds the search pipeline tunables. Zero values fall back to the
// production defaults, so a partial config file only overrides what it
// names.
type Config struct {
	// Blend weights for full-text and semantic scores
	FulltextWeight float64
	SemanticWeight float64

	// ScoreFloor discards blended results below this value
	ScoreFloor float64

	// PageSize is the default result page size
	PageSize int

	// BranchLimit is how many candidates each source contributes before
	// blending; kept above PageSize so dedupe does not starve a page
	BranchLimit int

	// BranchTimeout bounds each search branch independently
	BranchTimeout time.Duration

	Breaker provider.BreakerConfig
	Retry   provider.RetryConfig
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		FulltextWeight: 0.6,
		SemanticWeight: 0.4,
		ScoreFloor:     0.05,
		PageSize:       10,
		BranchLimit:    30,
		BranchTimeout:  3 * time.Second,
		Breaker:        provider.DefaultBreakerConfig(),
		Retry:          provider.DefaultRetryConfig(),
	}
}

// rawConfig is the YAML shape; durations are "3s" style strings
type rawConfig struct {
	FulltextWeight float64 `yaml:"fulltext_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	ScoreFloor     float64 `yaml:"score_floor"`
	PageSize       int     `yaml:"page_size"`
	BranchLimit    int     `yaml:"branch_limit"`
	BranchTimeout  string  `yaml:"branch_timeout"`

	Breaker struct {
		FailureThreshold int    `yaml:"failure_threshold"`
		Window           string `yaml:"window"`
		Cooldown         string `yaml:"cooldown"`
		MaxCooldown      string `yaml:"max_cooldown"`
	} `yaml:"breaker"`

	Retry struct {
		Attempts  uint   `yaml:"attempts"`
		BaseDelay string `yaml:"base_delay"`
		MaxJitter string `yaml:"max_jitter"`
	} `yaml:"retry"`
}

// LoadConfig reads tunables from a YAML file, applying defaults for absent
// fields. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, goerr.Wrap(err, "failed to read search config", goerr.V("path", path))
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, goerr.Wrap(err, "failed to parse search config", goerr.V("path", path))
	}

	if raw.FulltextWeight > 0 {
		cfg.FulltextWeight = raw.FulltextWeight
	}
	if raw.SemanticWeight > 0 {
		cfg.SemanticWeight = raw.SemanticWeight
	}
	if raw.ScoreFloor > 0 {
		cfg.ScoreFloor = raw.ScoreFloor
	}
	if raw.PageSize > 0 {
		cfg.PageSize = raw.PageSize
	}
	if raw.BranchLimit > 0 {
		cfg.BranchLimit = raw.BranchLimit
	}
	if err := setDuration(&cfg.BranchTimeout, raw.BranchTimeout, "branch_timeout"); err != nil {
		return cfg, err
	}

	if raw.Breaker.FailureThreshold > 0 {
		cfg.Breaker.FailureThreshold = raw.Breaker.FailureThreshold
	}
	for _, d := range []struct {
		dst  *time.Duration
		src  string
		name string
	}{
		{&cfg.Breaker.Window, raw.Breaker.Window, "breaker.window"},
		{&cfg.Breaker.Cooldown, raw.Breaker.Cooldown, "breaker.cooldown"},
		{&cfg.Breaker.MaxCooldown, raw.Breaker.MaxCooldown, "breaker.max_cooldown"},
		{&cfg.Retry.BaseDelay, raw.Retry.BaseDelay, "retry.base_delay"},
		{&cfg.Retry.MaxJitter, raw.Retry.MaxJitter, "retry.max_jitter"},
	} {
		if err := setDuration(d.dst, d.src, d.name); err != nil {
			return cfg, err
		}
	}
	if raw.Retry.Attempts > 0 {
		cfg.Retry.Attempts = raw.Retry.Attempts
	}

	return cfg, nil
}

func setDuration(dst *time.Duration, src, name string) error {
	if src == "" {
		return nil
	}
	v, err := time.ParseDuration(src)
	if err != nil {
		return goerr.Wrap(err, "invalid duration in search config", goerr.V("field", name), goerr.V("value", src))
	}
	*dst = v
	return nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.FulltextWeight <= 0 {
		c.FulltextWeight = def.FulltextWeight
	}
	if c.SemanticWeight <= 0 {
		c.SemanticWeight = def.SemanticWeight
	}
	if c.ScoreFloor <= 0 {
		c.ScoreFloor = def.ScoreFloor
	}
	if c.PageSize <= 0 {
		c.PageSize = def.PageSize
	}
	if c.BranchLimit <= 0 {
		c.BranchLimit = def.BranchLimit
	}
	if c.BranchTimeout <= 0 {
		c.BranchTimeout = def.BranchTimeout
	}
	return c
}
