package types

import "time"

const (
	// DefaultTimeout is the per-probe wall-clock limit.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRedirects caps redirect hops during a probe.
	DefaultMaxRedirects = 3

	// DefaultUserAgent is sent with every outbound request.
	DefaultUserAgent = "findit/0.1 (+https://github.com/pdiddy/findit)"

	// Rate limits for the metadata API in requests per second.
	DefaultRateLimit     = 3.0
	CredentialRateLimit  = 10.0
	DefaultCrossRefLimit = 5.0
)

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRedirects caps redirect hops followed by the transport.
	MaxRedirects int `json:"max_redirects" yaml:"max_redirects" mapstructure:"max_redirects"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// UpstreamConfig holds settings for the metadata API clients.
type UpstreamConfig struct {
	// EutilsBaseURL is the NCBI E-utilities root.
	EutilsBaseURL string `json:"eutils_base_url" yaml:"eutils_base_url" mapstructure:"eutils_base_url"`

	// CrossRefBaseURL is the CrossRef works endpoint.
	CrossRefBaseURL string `json:"crossref_base_url" yaml:"crossref_base_url" mapstructure:"crossref_base_url"`

	// APIKey is the optional NCBI credential; it raises the rate limit.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"ncbi_api_key"`

	// Mailto identifies the caller to CrossRef's polite pool.
	Mailto string `json:"mailto,omitempty" yaml:"mailto,omitempty" mapstructure:"crossref_mailto"`

	// RateLimit overrides the requests-per-second limit for E-utilities.
	// Zero selects DefaultRateLimit, or CredentialRateLimit with an APIKey.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`
}

// EffectiveRateLimit returns the configured limit or the tier default.
func (c UpstreamConfig) EffectiveRateLimit() float64 {
	if c.RateLimit > 0 {
		return c.RateLimit
	}
	if c.APIKey != "" {
		return CredentialRateLimit
	}
	return DefaultRateLimit
}

// LoggingConfig selects zerolog level and output format.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config groups all settings read at startup.
type Config struct {
	HTTP     HTTPConfig     `json:"http" yaml:"http" mapstructure:",squash"`
	Upstream UpstreamConfig `json:"upstream" yaml:"upstream" mapstructure:",squash"`
	Log      LoggingConfig  `json:"log" yaml:"log" mapstructure:"log"`

	// CacheDir holds results.db and upstream.db.
	CacheDir string `json:"cache_dir" yaml:"cache_dir" mapstructure:"cache_dir"`

	// MetricsFile, when set, receives a Prometheus text dump on exit.
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`
}
