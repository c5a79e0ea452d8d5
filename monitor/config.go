// monitor/config.go
package monitor

import (
	"fmt"
	"net/url"
	"time"

	"webmon-sdk/internal/sampler"
	"webmon-sdk/internal/transport"
)

// Features toggles the capture components. Replay is off by default: it
// is the most expensive capture and the least universally wanted.
type Features struct {
	Performance bool `json:"performance" mapstructure:"performance"`
	Errors      bool `json:"errors" mapstructure:"errors"`
	Behavior    bool `json:"behavior" mapstructure:"behavior"`
	Replay      bool `json:"replay" mapstructure:"replay"`
}

// Reporting tunes the delivery pipeline.
type Reporting struct {
	BatchSize     int           `json:"batchSize" mapstructure:"batch_size"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flush_interval"`
	MaxRetries    int           `json:"maxRetries" mapstructure:"max_retries"`
	Timeout       time.Duration `json:"timeout" mapstructure:"timeout"`
	Compress      bool          `json:"compress" mapstructure:"compress"`
}

// Privacy narrows where and what the SDK records.
//
// AllowedDomains, when non-empty, restricts capture to pages whose host
// matches one of the entries (exact or subdomain). BlockedElements lists
// selectors whose interactions are dropped at admission. Input masking
// and PII redaction themselves are unconditional; MaskSensitiveData
// exists for configuration compatibility and cannot turn them off.
type Privacy struct {
	MaskSensitiveData bool     `json:"maskSensitiveData" mapstructure:"mask_sensitive_data"`
	AllowedDomains    []string `json:"allowedDomains" mapstructure:"allowed_domains"`
	BlockedElements   []string `json:"blockedElements" mapstructure:"blocked_elements"`
}

// Config is the full SDK configuration. Build it with NewConfig to get
// the documented defaults; a zero Config fails Validate.
type Config struct {
	AppID    string `json:"appId" mapstructure:"app_id"`
	APIKey   string `json:"apiKey" mapstructure:"api_key"`
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`

	Features Features      `json:"features" mapstructure:"features"`
	Sampling sampler.Rates `json:"sampling" mapstructure:"sampling"`

	// SlowPageLoadMS forces admission of performance events whose page
	// load time exceeds it. 0 disables the override.
	SlowPageLoadMS float64 `json:"slowPageLoadMs" mapstructure:"slow_page_load_ms"`

	Reporting Reporting `json:"reporting" mapstructure:"reporting"`
	Privacy   Privacy   `json:"privacy" mapstructure:"privacy"`

	// CaptureMousemove opts into the (throttled) mousemove stream for
	// behavior capture and replay.
	CaptureMousemove bool `json:"captureMousemove" mapstructure:"capture_mousemove"`

	Debug       bool   `json:"debug" mapstructure:"debug"`
	Environment string `json:"environment" mapstructure:"environment"`
}

// NewConfig returns a Config with the stock defaults: performance,
// error, and behavior capture on, replay off, default sampling rates,
// and the standard reporting parameters.
func NewConfig(appID, apiKey, endpoint string) Config {
	return Config{
		AppID:    appID,
		APIKey:   apiKey,
		Endpoint: endpoint,
		Features: Features{Performance: true, Errors: true, Behavior: true},
		Sampling: sampler.DefaultRates(),
		Reporting: Reporting{
			BatchSize:     transport.DefaultBatchSize,
			FlushInterval: DefaultFlushInterval,
			MaxRetries:    transport.DefaultMaxRetries,
			Timeout:       transport.DefaultTimeout,
		},
		Privacy: Privacy{MaskSensitiveData: true},
	}
}

// withDefaults fills zero reporting values and treats an all-zero
// sampling block as unset. An explicit zero for a single kind is
// respected; all four at zero is indistinguishable from "not
// configured" and almost always means the latter.
func (c Config) withDefaults() Config {
	if c.Reporting.BatchSize <= 0 {
		c.Reporting.BatchSize = transport.DefaultBatchSize
	}
	if c.Reporting.FlushInterval <= 0 {
		c.Reporting.FlushInterval = DefaultFlushInterval
	}
	if c.Reporting.MaxRetries <= 0 {
		c.Reporting.MaxRetries = transport.DefaultMaxRetries
	}
	if c.Reporting.Timeout <= 0 {
		c.Reporting.Timeout = transport.DefaultTimeout
	}
	if c.Sampling == (sampler.Rates{}) {
		c.Sampling = sampler.DefaultRates()
	}
	return c
}

// Validate reports the first configuration error. Construction refuses
// an invalid config; there is no degraded half-configured mode.
func (c Config) Validate() error {
	if c.AppID == "" {
		return fmt.Errorf("config: appId is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("config: apiKey is required")
	}
	if c.Endpoint == "" {
		return fmt.Errorf("config: endpoint is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("config: endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: endpoint must be http(s), got %q", c.Endpoint)
	}
	return nil
}
