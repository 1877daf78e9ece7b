package tracker

import (
	"net/url"
	"strings"
)

const (
	SourceDirect   = "direct"
	SourceReferral = "referral"

	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"

	familyOther = "Other"
)

// Environment is what the page reports about itself on each beacon.
type Environment struct {
	URL       string
	Title     string
	Referrer  string
	UserAgent string
	ClientIP  string
	Width     int
	Height    int
}

// UTM holds the standard campaign parameters. Absent parameters are nil.
type UTM struct {
	Source   *string
	Medium   *string
	Campaign *string
}

// Classifier derives device, browser, OS and traffic source from an
// Environment. All methods are pure.
type Classifier struct {
	mobileBelow int
	tabletBelow int
	platforms   []string
	browsers    []Match
	systems     []Match
}

func NewClassifier(opts Options) Classifier {
	return Classifier{
		mobileBelow: opts.MobileBelow,
		tabletBelow: opts.TabletBelow,
		platforms:   opts.KnownPlatforms,
		browsers:    opts.Browsers,
		systems:     opts.OperatingSystems,
	}
}

var defaultClassifier = NewClassifier(DefaultOptions())

func (c Classifier) DeviceType(width int) string {
	switch {
	case width < c.mobileBelow:
		return DeviceMobile
	case width < c.tabletBelow:
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

func (c Classifier) Browser(userAgent string) string {
	return firstMatch(userAgent, c.browsers)
}

func (c Classifier) OS(userAgent string) string {
	return firstMatch(userAgent, c.systems)
}

// Source resolves the traffic source: utm_source, then the custom source
// parameter, then a known platform in the referrer, then "referral" for any
// other referrer, and "direct" when there is none.
func (c Classifier) Source(env Environment) string {
	query := queryOf(env.URL)
	if v := query.Get("utm_source"); v != "" {
		return v
	}
	if v := query.Get("source"); v != "" {
		return v
	}
	if env.Referrer == "" {
		return SourceDirect
	}
	referrer := strings.ToLower(env.Referrer)
	for _, p := range c.platforms {
		if strings.Contains(referrer, p) {
			return p
		}
	}
	return SourceReferral
}

func (c Classifier) UTM(env Environment) UTM {
	query := queryOf(env.URL)
	return UTM{
		Source:   optional(query.Get("utm_source")),
		Medium:   optional(query.Get("utm_medium")),
		Campaign: optional(query.Get("utm_campaign")),
	}
}

// DeviceType classifies a viewport width with the default breakpoints.
func DeviceType(width int) string { return defaultClassifier.DeviceType(width) }

// Browser classifies a user agent with the default browser list.
func Browser(userAgent string) string { return defaultClassifier.Browser(userAgent) }

// OS classifies a user agent with the default OS list.
func OS(userAgent string) string { return defaultClassifier.OS(userAgent) }

// Source resolves the traffic source with the default platform list.
func Source(env Environment) string { return defaultClassifier.Source(env) }

func firstMatch(userAgent string, matches []Match) string {
	for _, m := range matches {
		if strings.Contains(userAgent, m.Contains) {
			return m.Name
		}
	}
	return familyOther
}

func queryOf(rawURL string) url.Values {
	u, err := url.Parse(rawURL)
	if err != nil {
		return url.Values{}
	}
	return u.Query()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
