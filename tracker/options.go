package tracker

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Match maps a user-agent substring to a family name.
type Match struct {
	Contains string `yaml:"contains"`
	Name     string `yaml:"name"`
}

// Options tunes the tracker. The zero value is not usable; start from DefaultOptions.
type Options struct {
	SampleInterval time.Duration `yaml:"sample_interval"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	SessionTTL     time.Duration `yaml:"session_ttl"`

	BounceSeconds int `yaml:"bounce_seconds"`
	BounceClicks  int `yaml:"bounce_clicks"`

	MobileBelow int `yaml:"mobile_below"`
	TabletBelow int `yaml:"tablet_below"`

	KnownPlatforms   []string `yaml:"known_platforms"`
	Browsers         []Match  `yaml:"browsers"`
	OperatingSystems []Match  `yaml:"operating_systems"`
}

func DefaultOptions() Options {
	return Options{
		SampleInterval: 10 * time.Second,
		IdleTimeout:    2 * time.Minute,
		WriteTimeout:   10 * time.Second,
		SessionTTL:     30 * time.Minute,
		BounceSeconds:  10,
		BounceClicks:   2,
		MobileBelow:    768,
		TabletBelow:    1024,
		KnownPlatforms: []string{"google", "facebook", "instagram", "linkedin", "twitter"},
		// Order matters: Chrome user agents also contain "Safari".
		Browsers: []Match{
			{Contains: "Chrome", Name: "Chrome"},
			{Contains: "Firefox", Name: "Firefox"},
			{Contains: "Safari", Name: "Safari"},
			{Contains: "Edge", Name: "Edge"},
		},
		OperatingSystems: []Match{
			{Contains: "Windows", Name: "Windows"},
			{Contains: "Mac", Name: "MacOS"},
			{Contains: "Linux", Name: "Linux"},
			{Contains: "Android", Name: "Android"},
			{Contains: "iOS", Name: "iOS"},
		},
	}
}

// LoadOptions reads a YAML file over the defaults. An empty path returns the defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	if path == "" {
		return opts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("failed to read tracker config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("failed to parse tracker config %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("invalid tracker config %s: %w", path, err)
	}
	return opts, nil
}

func (o Options) Validate() error {
	var errs []error
	if o.SampleInterval <= 0 {
		errs = append(errs, errors.New("sample_interval must be positive"))
	}
	if o.IdleTimeout <= 0 {
		errs = append(errs, errors.New("idle_timeout must be positive"))
	}
	if o.WriteTimeout <= 0 {
		errs = append(errs, errors.New("write_timeout must be positive"))
	}
	if o.SessionTTL <= 0 {
		errs = append(errs, errors.New("session_ttl must be positive"))
	}
	if o.MobileBelow <= 0 || o.TabletBelow <= o.MobileBelow {
		errs = append(errs, fmt.Errorf("device breakpoints must satisfy 0 < mobile_below (%d) < tablet_below (%d)", o.MobileBelow, o.TabletBelow))
	}
	if o.BounceSeconds < 0 || o.BounceClicks < 0 {
		errs = append(errs, errors.New("bounce thresholds must not be negative"))
	}
	return errors.Join(errs...)
}
