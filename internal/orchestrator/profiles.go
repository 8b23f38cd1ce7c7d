package orchestrator

import (
	"time"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/report"
)

// ProfileConfig defines analysis depth for a named profile.
type ProfileConfig struct {
	Timeout      time.Duration // per batch
	TopN         int
	SnippetLines int
	Enrich       bool // run the local enricher after parsing
}

// profiles contains the built-in profile presets.
var profiles = map[string]ProfileConfig{
	"quick": {
		Timeout:      30 * time.Second,
		TopN:         3,
		SnippetLines: 4,
	},
	"standard": {
		Timeout:      2 * time.Minute,
		TopN:         5,
		SnippetLines: 8,
	},
	"deep": {
		Timeout:      5 * time.Minute,
		TopN:         10,
		SnippetLines: 20,
		Enrich:       true,
	},
}

// GetProfile returns the profile config for the given name.
// Falls back to "standard" if unknown.
func GetProfile(name string) ProfileConfig {
	if p, ok := profiles[name]; ok {
		return p
	}
	return profiles["standard"]
}

// ProfileNames returns available profile names.
func ProfileNames() []string {
	return []string{"quick", "standard", "deep"}
}

// Apply copies the profile's ranking and snippet sizes onto cfg. It is
// meant for a base config that user settings are layered over afterwards.
func (p ProfileConfig) Apply(cfg report.Config) report.Config {
	if p.TopN > 0 {
		cfg.TopN = p.TopN
	}
	if p.SnippetLines > 0 {
		cfg.SnippetLines = p.SnippetLines
	}
	return cfg
}
