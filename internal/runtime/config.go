package runtime

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lexcodex/yamlnav/framework/symbols"
	"github.com/lexcodex/yamlnav/tools/yamlkeys"
)

// ErrInvalidPattern is returned by Normalize when the locale filename pattern
// does not compile.
var ErrInvalidPattern = errors.New("invalid locale filename pattern")

// DefaultConfigFile is looked up in the working directory when no --config
// flag is given.
const DefaultConfigFile = ".yamlnav.yaml"

// DefaultLocalePattern matches files under a locale(s) directory.
const DefaultLocalePattern = `(^|/)locales?/[^/]+\.ya?ml$`

// Config captures every knob shared by the serve, browse and one-shot
// commands. Durations are written as Go duration strings in the file.
type Config struct {
	QuietPeriod   time.Duration `yaml:"quiet_period"`
	Workers       int           `yaml:"workers"`
	Classifier    string        `yaml:"classifier"`
	LocalePattern string        `yaml:"locale_pattern"`
	StripLocale   bool          `yaml:"strip_locale"`
	LogPath       string        `yaml:"log_path,omitempty"`
	TelemetryPath string        `yaml:"telemetry_path,omitempty"`
	MetricsAddr   string        `yaml:"metrics_addr,omitempty"`

	localeRegexp *regexp.Regexp
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		QuietPeriod:   400 * time.Millisecond,
		Workers:       2,
		Classifier:    yamlkeys.NameTreeSitter,
		LocalePattern: DefaultLocalePattern,
	}
}

// Normalize fills missing defaults, makes paths absolute and compiles the
// locale pattern. A pattern that does not compile fails the whole load.
func (c *Config) Normalize() error {
	defaults := DefaultConfig()
	if c.QuietPeriod <= 0 {
		c.QuietPeriod = defaults.QuietPeriod
	}
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	c.Classifier = strings.ToLower(strings.TrimSpace(c.Classifier))
	if c.Classifier == "" {
		c.Classifier = defaults.Classifier
	}
	if _, err := yamlkeys.New(c.Classifier); err != nil {
		return err
	}
	if c.LocalePattern == "" {
		c.LocalePattern = defaults.LocalePattern
	}
	re, err := regexp.Compile(c.LocalePattern)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidPattern, c.LocalePattern, err)
	}
	c.localeRegexp = re
	for _, p := range []*string{&c.LogPath, &c.TelemetryPath} {
		if *p == "" || filepath.IsAbs(*p) {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", *p, err)
		}
		*p = abs
	}
	return nil
}

// LocaleRule returns the copy rule for CopyActiveSymbolPath. Call Normalize
// first; an unnormalized config yields a rule that never applies.
func (c Config) LocaleRule() symbols.LocaleRule {
	return symbols.LocaleRule{Pattern: c.localeRegexp, Enabled: c.StripLocale}
}

// ClassifierImpl builds the configured key classifier.
func (c Config) ClassifierImpl() (yamlkeys.Classifier, error) {
	return yamlkeys.New(c.Classifier)
}

// LoadFile merges the YAML file at path over c. A missing file is not an error
// when optional is set, which is how the default .yamlnav.yaml is read.
func (c *Config) LoadFile(path string, optional bool) error {
	if path == "" {
		return fmt.Errorf("config path required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from YAMLNAV_* variables present in lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup("YAMLNAV_QUIET_PERIOD"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("YAMLNAV_QUIET_PERIOD: %w", err)
		}
		c.QuietPeriod = d
	}
	if v, ok := lookup("YAMLNAV_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("YAMLNAV_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v, ok := lookup("YAMLNAV_CLASSIFIER"); ok && v != "" {
		c.Classifier = v
	}
	if v, ok := lookup("YAMLNAV_LOCALE_PATTERN"); ok && v != "" {
		c.LocalePattern = v
	}
	if v, ok := lookup("YAMLNAV_STRIP_LOCALE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("YAMLNAV_STRIP_LOCALE: %w", err)
		}
		c.StripLocale = b
	}
	if v, ok := lookup("YAMLNAV_LOG"); ok && v != "" {
		c.LogPath = v
	}
	if v, ok := lookup("YAMLNAV_TELEMETRY"); ok && v != "" {
		c.TelemetryPath = v
	}
	if v, ok := lookup("YAMLNAV_METRICS_ADDR"); ok && v != "" {
		c.MetricsAddr = v
	}
	return nil
}

// Marshal renders the effective configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
