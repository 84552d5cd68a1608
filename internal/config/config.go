// Package config loads process configuration and the ingestion settings.
//
// Process settings (backend, DSN, listen address, logging, metrics) come from
// HRINGEST_* environment variables, optionally seeded from .env files. The
// header alias table and the ingest settings are YAML files read once at
// startup and then passed around as immutable values.
//
// Example settings file:
//
//	ingest:
//	  use_bulk_copy: true
//	  fail_fast_on_header_mismatch: false
//	  default_mode: insert
//	  max_batch_rows: 1000
//
// Example header map file:
//
//	departments:
//	  name: ["Department Name", "dept_name"]
package config

import (
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"hringest/internal/errs"
)

// Config is the process configuration read from the environment.
type Config struct {
	StorageKind    string        `env:"HRINGEST_STORAGE_KIND" envDefault:"sqlite"`
	DSN            string        `env:"HRINGEST_DSN" envDefault:"file:hringest.db?_pragma=foreign_keys(1)"`
	HeaderMapPath  string        `env:"HRINGEST_HEADER_MAP" envDefault:"configs/header_mappings.yaml"`
	SettingsPath   string        `env:"HRINGEST_SETTINGS" envDefault:"configs/settings.yaml"`
	HTTPAddr       string        `env:"HRINGEST_HTTP_ADDR" envDefault:":8000"`
	LogLevel       string        `env:"HRINGEST_LOG_LEVEL" envDefault:"info"`
	LogJSON        bool          `env:"HRINGEST_LOG_JSON" envDefault:"false"`
	MetricsBackend string        `env:"HRINGEST_METRICS_BACKEND" envDefault:"none"`
	PushgatewayURL string        `env:"HRINGEST_PUSHGATEWAY_URL"`
	DatadogAddr    string        `env:"HRINGEST_DATADOG_ADDR" envDefault:"127.0.0.1:8125"`
	SourceTimeout  time.Duration `env:"HRINGEST_SOURCE_TIMEOUT" envDefault:"30s"`
}

// Load reads any of envFiles that exist into the environment and then
// decodes Config from it. Variables already set win over file values.
func Load(envFiles ...string) (Config, error) {
	if _, err := LoadEnv(envFiles); err != nil {
		return Config{}, err
	}
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, &errs.ConfigurationError{Msg: err.Error()}
	}
	return c, nil
}

// LoadEnv loads the env files that exist and reports how many were found.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, f := range envFiles {
		if st, err := os.Stat(f); err == nil && !st.IsDir() {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return 0, errors.Wrap(err, "load env files")
	}
	return len(existing), nil
}

// Mode names accepted by default_mode.
const (
	ModeInsert = "insert"
	ModeUpsert = "upsert"
)

// Settings is the decoded settings file.
type Settings struct {
	Ingest IngestSettings `yaml:"ingest"`
}

// IngestSettings controls ingestion behavior.
type IngestSettings struct {
	// UseBulkCopy selects the bulk-copy strategy on backends that offer it.
	UseBulkCopy bool `yaml:"use_bulk_copy"`
	// FailFastOnHeaderMismatch turns a missing canonical header into a
	// HeaderMismatchError instead of per-row failures.
	FailFastOnHeaderMismatch bool `yaml:"fail_fast_on_header_mismatch"`
	// DefaultMode applies when a request does not name a mode.
	DefaultMode string `yaml:"default_mode"`
	// MaxBatchRows bounds the rows per row-wise INSERT statement.
	MaxBatchRows int `yaml:"max_batch_rows"`
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() Settings {
	return Settings{Ingest: IngestSettings{
		UseBulkCopy:              true,
		FailFastOnHeaderMismatch: false,
		DefaultMode:              ModeInsert,
		MaxBatchRows:             1000,
	}}
}

// HeaderMap maps table name -> canonical column -> aliases.
type HeaderMap map[string]map[string][]string

// Aliases returns the alias lists for table, or nil.
func (h HeaderMap) Aliases(table string) map[string][]string {
	if h == nil {
		return nil
	}
	return h[table]
}

// LoadSettings decodes the settings file at path over DefaultSettings. A
// missing file yields the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	b, err := readOptional(path)
	if err != nil || b == nil {
		return s, err
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, errs.Configf("parse settings %s: %v", path, err)
	}
	if s.Ingest.DefaultMode == "" {
		s.Ingest.DefaultMode = ModeInsert
	}
	if s.Ingest.MaxBatchRows == 0 {
		s.Ingest.MaxBatchRows = DefaultSettings().Ingest.MaxBatchRows
	}
	return s, nil
}

// LoadHeaderMap decodes the header map file at path. A missing file yields
// an empty map.
func LoadHeaderMap(path string) (HeaderMap, error) {
	h := HeaderMap{}
	b, err := readOptional(path)
	if err != nil || b == nil {
		return h, err
	}
	if err := yaml.Unmarshal(b, &h); err != nil {
		return nil, errs.Configf("parse header map %s: %v", path, err)
	}
	if h == nil {
		h = HeaderMap{}
	}
	return h, nil
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return b, nil
}
