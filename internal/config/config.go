// Package config loads the optional bwlens YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/report"
)

// EnvPath names the environment variable that points at a config file.
const EnvPath = "BWLENS_CONFIG"

// Session backends.
const (
	BackendFile   = "file"
	BackendValkey = "valkey"
)

// Config is the on-disk configuration.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Session  SessionConfig  `yaml:"session"`
	Server   ServerConfig   `yaml:"server"`
}

type AnalysisConfig struct {
	CPUThreshold float64 `yaml:"cpuThreshold"`
	// SnippetLines and TopN stay zero unless configured, leaving the
	// analysis profile's sizes in effect.
	SnippetLines       int      `yaml:"snippetLines"`
	TopN               int      `yaml:"topN"`
	ImportantEnvKeys   []string `yaml:"importantEnvKeys"`
	ApplicationsMarker string   `yaml:"applicationsMarker"`
	// UTC renders chart timestamps in UTC instead of the local zone.
	UTC bool `yaml:"utc"`
}

type SessionConfig struct {
	Backend string       `yaml:"backend"`
	Path    string       `yaml:"path"`
	Valkey  ValkeyConfig `yaml:"valkey"`
}

type ValkeyConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	KeyPrefix string `yaml:"keyPrefix"`
}

type ServerConfig struct {
	Address        string `yaml:"address"`
	Mode           string `yaml:"mode"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
}

// Default returns the built-in configuration.
func Default() Config {
	rc := report.DefaultConfig()
	return Config{
		Analysis: AnalysisConfig{
			CPUThreshold:       rc.CPUThreshold,
			ImportantEnvKeys:   append([]string(nil), rc.ImportantEnvKeys...),
			ApplicationsMarker: rc.ApplicationsMarker,
		},
		Session: SessionConfig{
			Backend: BackendFile,
			Path:    defaultSessionPath(),
			Valkey:  ValkeyConfig{Address: "localhost:6379", KeyPrefix: "bwlens:"},
		},
		Server: ServerConfig{
			Address:        ":8080",
			Mode:           "release",
			MaxUploadBytes: 64 << 20,
		},
	}
}

func defaultSessionPath() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "bwlens", "sessions.json")
}

// Load reads path over the defaults. An empty path falls back to
// $BWLENS_CONFIG; when both are empty the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the analysis cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Analysis.CPUThreshold < 0 {
		errs = append(errs, errors.New("analysis.cpuThreshold must not be negative"))
	}
	if c.Analysis.SnippetLines < 0 {
		errs = append(errs, errors.New("analysis.snippetLines must not be negative"))
	}
	if c.Analysis.TopN < 0 {
		errs = append(errs, errors.New("analysis.topN must not be negative"))
	}
	switch strings.ToLower(c.Session.Backend) {
	case BackendFile, BackendValkey, "":
	default:
		errs = append(errs, fmt.Errorf("session.backend %q: want %s or %s", c.Session.Backend, BackendFile, BackendValkey))
	}
	if c.Server.MaxUploadBytes < 0 {
		errs = append(errs, errors.New("server.maxUploadBytes must not be negative"))
	}
	return errors.Join(errs...)
}

// ReportConfig converts the analysis section into parser settings.
func (c Config) ReportConfig() report.Config {
	return c.ReportConfigOver(report.DefaultConfig())
}

// ReportConfigOver overlays the configured analysis values onto base.
// Values left unset keep base's settings.
func (c Config) ReportConfigOver(base report.Config) report.Config {
	rc := base
	rc.ImportantEnvKeys = append([]string(nil), base.ImportantEnvKeys...)
	a := c.Analysis
	if a.CPUThreshold > 0 {
		rc.CPUThreshold = a.CPUThreshold
	}
	if a.SnippetLines > 0 {
		rc.SnippetLines = a.SnippetLines
	}
	if a.TopN > 0 {
		rc.TopN = a.TopN
	}
	if len(a.ImportantEnvKeys) > 0 {
		rc.ImportantEnvKeys = append([]string(nil), a.ImportantEnvKeys...)
	}
	if a.ApplicationsMarker != "" {
		rc.ApplicationsMarker = a.ApplicationsMarker
	}
	if a.UTC {
		rc.Location = time.UTC
	}
	return rc
}
