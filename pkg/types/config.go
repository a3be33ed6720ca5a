package types

import "time"

// HTTPConfig holds shared HTTP settings for components that make network
// requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "corpus-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// FeedConfig holds settings for the article source adapter.
type FeedConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Endpoint is the paginated JSON posts endpoint
	// (e.g. "https://example.substack.com/api/v1/posts").
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// RSSURL is an optional RSS feed tried when the JSON endpoint's first
	// page never succeeds. Empty disables the fallback.
	RSSURL string `json:"rss_url,omitempty" yaml:"rss_url,omitempty" mapstructure:"rss_url"`

	// MaxArticles caps how many records are collected (default 50).
	MaxArticles int `json:"max_articles" yaml:"max_articles" mapstructure:"max_articles"`

	// PageSize is the limit query parameter per page (default 25).
	PageSize int `json:"page_size" yaml:"page_size" mapstructure:"page_size"`

	// PageRetries is the bounded attempt count per page (default 3).
	PageRetries int `json:"page_retries" yaml:"page_retries" mapstructure:"page_retries"`

	// PageConcurrency bounds concurrent page fetches after page one
	// (default 2). Results are reassembled in feed order regardless.
	PageConcurrency int `json:"page_concurrency" yaml:"page_concurrency" mapstructure:"page_concurrency"`

	// MinBodyChars is the stub threshold: records whose stripped body is
	// shorter are dropped (default 80).
	MinBodyChars int `json:"min_body_chars" yaml:"min_body_chars" mapstructure:"min_body_chars"`

	// FallbackAuthor substitutes for records with no byline
	// (default "Unknown Author").
	FallbackAuthor string `json:"fallback_author" yaml:"fallback_author" mapstructure:"fallback_author"`

	// RecoverBodies enables fetching an article's page and extracting
	// readable text when the feed record's body is under MinBodyChars.
	RecoverBodies bool `json:"recover_bodies" yaml:"recover_bodies" mapstructure:"recover_bodies"`

	// AuthToken is sent as a bearer token on feed requests when non-empty.
	// Populated from the secrets directory, never from the config file.
	AuthToken string `json:"-" yaml:"-" mapstructure:"-"`
}

// DigestConfig holds settings for the compressor.
type DigestConfig struct {
	// BudgetChars is the hard digest size limit in runes (default 6000).
	BudgetChars int `json:"budget_chars" yaml:"budget_chars" mapstructure:"budget_chars"`
}

// MatchConfig holds settings for the relevance matcher.
type MatchConfig struct {
	// Threshold is the minimum top score for a confident match
	// (default 1.0). Strictly exceeded, never equaled.
	Threshold float64 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`

	// Margin is the minimum lead over the runner-up score for a confident
	// match (default 0.5).
	Margin float64 `json:"margin" yaml:"margin" mapstructure:"margin"`
}

// PersonaConfig holds the responder-facing persona and policy text.
type PersonaConfig struct {
	// Domain names the expertise area used in instructions and greetings
	// (e.g. "Trilogy AI").
	Domain string `json:"domain" yaml:"domain" mapstructure:"domain"`

	// Style is the communication-style directive prepended to every payload.
	Style string `json:"style" yaml:"style" mapstructure:"style"`

	// Language is the only language the responder may answer in
	// (default "English").
	Language string `json:"language" yaml:"language" mapstructure:"language"`

	// Greeting is the opening line returned before any corpus is consulted.
	// Empty selects a default built from Domain.
	Greeting string `json:"greeting,omitempty" yaml:"greeting,omitempty" mapstructure:"greeting"`
}

// PatternsConfig holds the three concept-pattern families. Empty lists fall
// back to the built-in defaults.
type PatternsConfig struct {
	Tools         []string `json:"tools" yaml:"tools" mapstructure:"tools"`
	Models        []string `json:"models" yaml:"models" mapstructure:"models"`
	Methodologies []string `json:"methodologies" yaml:"methodologies" mapstructure:"methodologies"`
}

// Flatten converts the three lists into uniform family-qualified patterns.
func (p PatternsConfig) Flatten() []Pattern {
	var out []Pattern
	for _, t := range p.Tools {
		out = append(out, Pattern{Family: FamilyTool, Text: t})
	}
	for _, m := range p.Models {
		out = append(out, Pattern{Family: FamilyModel, Text: m})
	}
	for _, m := range p.Methodologies {
		out = append(out, Pattern{Family: FamilyMethodology, Text: m})
	}
	return out
}

// ArchiveConfig holds settings for the optional corpus archive.
type ArchiveConfig struct {
	// Path is the SQLite database file. Empty disables the archive.
	Path string `json:"path,omitempty" yaml:"path,omitempty" mapstructure:"path"`

	// Keep is how many snapshots to retain when pruning (default 10).
	Keep int `json:"keep" yaml:"keep" mapstructure:"keep"`
}

// ServerConfig holds settings for the HTTP serving layer.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// RefreshCron is a cron expression for scheduled corpus refreshes
	// (e.g. "@every 30m"). Empty disables scheduling.
	RefreshCron string `json:"refresh_cron,omitempty" yaml:"refresh_cron,omitempty" mapstructure:"refresh_cron"`

	// LogLevel is the slog level: debug, info, warn, or error (default info).
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`

	// LogFormat selects the slog handler: text or json (default text).
	LogFormat string `json:"log_format" yaml:"log_format" mapstructure:"log_format"`

	// ShutdownGrace is how long in-flight requests get to drain on shutdown
	// (default 10s).
	ShutdownGrace time.Duration `json:"shutdown_grace" yaml:"shutdown_grace" mapstructure:"shutdown_grace"`

	// AdminToken guards the refresh endpoint when non-empty. Populated from
	// the secrets directory, never from the config file.
	AdminToken string `json:"-" yaml:"-" mapstructure:"-"`
}

// Config groups all component configurations. Read once at startup, immutable
// thereafter.
type Config struct {
	Feed     FeedConfig     `json:"feed" yaml:"feed" mapstructure:"feed"`
	Digest   DigestConfig   `json:"digest" yaml:"digest" mapstructure:"digest"`
	Match    MatchConfig    `json:"match" yaml:"match" mapstructure:"match"`
	Persona  PersonaConfig  `json:"persona" yaml:"persona" mapstructure:"persona"`
	Patterns PatternsConfig `json:"patterns" yaml:"patterns" mapstructure:"patterns"`
	Avatar   AvatarSettings `json:"avatar" yaml:"avatar" mapstructure:"avatar"`
	Archive  ArchiveConfig  `json:"archive" yaml:"archive" mapstructure:"archive"`
	Server   ServerConfig   `json:"server" yaml:"server" mapstructure:"server"`
}
