package textfx

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dario.cat/mergo"
)

// Duration is a time.Duration that reads from json as a Go duration string ("15s", "2m").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	err := json.Unmarshal(data, &text)
	if err != nil {
		return fmt.Errorf("duration must be a string like \"15s\": %w", err)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	// ProviderHost is the domain every target page must belong to, subdomains included.
	ProviderHost string `json:"provider_host"`
	UserAgent    string `json:"user_agent"`

	LoadTimeout     Duration `json:"load_timeout"`
	SubmitTimeout   Duration `json:"submit_timeout"`
	ProbeTimeout    Duration `json:"probe_timeout"`
	ValidateTimeout Duration `json:"validate_timeout"`
	// OverallTimeout bounds a whole pipeline run, poll loops included.
	OverallTimeout Duration `json:"overall_timeout"`

	PollInterval Duration `json:"poll_interval"`
	PollCeiling  Duration `json:"poll_ceiling"`
	BlindWait    Duration `json:"blind_wait"`

	MaxRedirects int `json:"max_redirects"`

	// MinArtifactBytes is the smallest content length accepted as a genuinely generated
	// image. The value that matches the provider has not been calibrated.
	MinArtifactBytes int64 `json:"min_artifact_bytes"`
	// TemplateFingerprints are url fragments of static images the provider serves in
	// place of a generated result.
	TemplateFingerprints []string `json:"template_fingerprints"`

	// RequireProcessingServer makes the pipeline fail before submitting if the page
	// does not expose a processing server id.
	RequireProcessingServer bool `json:"require_processing_server"`

	RequestsPerSecond float64 `json:"requests_per_second"`
	RequestBurst      int     `json:"request_burst"`

	DisableCloudflareBypass bool `json:"disable_cloudflare_bypass"`
	// DumpHttp reports full request/response messages as debug telemetry.
	DumpHttp bool `json:"dump_http"`
	// DumpDirectory, when set, receives every request/response message of every run as a
	// file. It takes precedence over DumpHttp.
	DumpDirectory string `json:"dump_directory"`

	// TextAliases are the alternate names every text is also submitted under.
	TextAliases []FieldAlias `json:"text_aliases"`
}

func DefaultConfig() Config {
	return Config{
		ProviderHost: "photooxy.com",
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",

		LoadTimeout:     Duration(15 * time.Second),
		SubmitTimeout:   Duration(30 * time.Second),
		ProbeTimeout:    Duration(15 * time.Second),
		ValidateTimeout: Duration(10 * time.Second),
		OverallTimeout:  Duration(2 * time.Minute),

		PollInterval: Duration(2 * time.Second),
		PollCeiling:  Duration(30 * time.Second),
		BlindWait:    Duration(5 * time.Second),

		MaxRedirects: 5,

		MinArtifactBytes:     5000,
		TemplateFingerprints: []string{"/images/default-effect-preview"},

		RequestsPerSecond: 2,
		RequestBurst:      2,

		TextAliases: DefaultTextAliases(),
	}
}

// withDefaults fills every zero field from DefaultConfig.
func (c Config) withDefaults() (Config, error) {
	err := mergo.Merge(&c, DefaultConfig())
	if err != nil {
		return c, err
	}
	c.ProviderHost = strings.ToLower(strings.TrimSpace(c.ProviderHost))
	if c.RequestBurst < 1 {
		c.RequestBurst = 1
	}
	return c, nil
}
