package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "Local"
	configPathEnv   = "BRIEF_SCANNER_CONFIG"
	aiAPIKeyEnv     = "AI_API_KEY"
	aiBaseURLEnv    = "AI_BASE_URL"
	aiModelEnv      = "AI_MODEL"
	telegramToken   = "TELEGRAM_BOT_TOKEN"
	telegramChatID  = "TELEGRAM_CHAT_ID"
	ntfyTopicEnv    = "NTFY_TOPIC"
	ntfyTokenEnv    = "NTFY_TOKEN"
	natsURLEnv      = "NATS_URL"
	archiveDriver   = "ARCHIVE_DRIVER"
	archiveDSN      = "ARCHIVE_DSN"
	logLevelEnv     = "LOG_LEVEL"
	logFormatEnv    = "LOG_FORMAT"
)

// Source kinds understood by the application.
const (
	KindAIBase     = "aibase"
	KindHackerNews = "hackernews"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	AI            AIConfig           `yaml:"ai"`
	Notifications NotificationConfig `yaml:"notifications"`
	Archive       ArchiveConfig      `yaml:"archive"`
	Run           RunConfig          `yaml:"run"`
	Sources       []SourceConfig     `yaml:"sources"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SchedulerConfig carries the timezone used for cron matching and date labels.
type SchedulerConfig struct {
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	return time.Local
}

// AIConfig defines how to contact the OpenAI-compatible completion API.
type AIConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Ntfy     NtfyConfig     `yaml:"ntfy"`
	NATS     NATSConfig     `yaml:"nats"`
	Log      bool           `yaml:"log"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	APIURL   string `yaml:"api_url"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// NtfyConfig points to an ntfy server topic.
type NtfyConfig struct {
	Server string `yaml:"server"`
	Topic  string `yaml:"topic"`
	Token  string `yaml:"token"`
}

// NATSConfig publishes reports on a subject.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// ArchiveConfig enables the write-only delivery archive. An empty driver disables it.
type ArchiveConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Jitter is a closed delay interval.
type Jitter struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// RunConfig holds the tunables of one pipeline run. Zero fields inherit from
// the global block; an empty model falls back to the AI section.
type RunConfig struct {
	Hours                 int           `yaml:"hours"`
	MaxItems              int           `yaml:"max_items"`
	Model                 string        `yaml:"model"`
	MaxConcurrentRequests int           `yaml:"max_concurrent_requests"`
	MaxConcurrentAI       int           `yaml:"max_concurrent_ai"`
	BatchStep             int           `yaml:"batch_step"`
	MinScore              int           `yaml:"min_score"`
	StallThreshold        int           `yaml:"stall_threshold"`
	FetchTimeout          time.Duration `yaml:"fetch_timeout"`
	ItemJitter            Jitter        `yaml:"item_jitter"`
	BatchPause            Jitter        `yaml:"batch_pause"`
	AIJitter              Jitter        `yaml:"ai_jitter"`
	RequestsPerSecond     float64       `yaml:"requests_per_second"`
	AIMaxAttempts         int           `yaml:"ai_max_attempts"`
}

// Merge returns r with every non-zero field of override applied.
func (r RunConfig) Merge(override RunConfig) RunConfig {
	if override.Hours > 0 {
		r.Hours = override.Hours
	}
	if override.MaxItems > 0 {
		r.MaxItems = override.MaxItems
	}
	if override.Model != "" {
		r.Model = override.Model
	}
	if override.MaxConcurrentRequests > 0 {
		r.MaxConcurrentRequests = override.MaxConcurrentRequests
	}
	if override.MaxConcurrentAI > 0 {
		r.MaxConcurrentAI = override.MaxConcurrentAI
	}
	if override.BatchStep > 0 {
		r.BatchStep = override.BatchStep
	}
	if override.MinScore > 0 {
		r.MinScore = override.MinScore
	}
	if override.StallThreshold > 0 {
		r.StallThreshold = override.StallThreshold
	}
	if override.FetchTimeout > 0 {
		r.FetchTimeout = override.FetchTimeout
	}
	if override.ItemJitter != (Jitter{}) {
		r.ItemJitter = override.ItemJitter
	}
	if override.BatchPause != (Jitter{}) {
		r.BatchPause = override.BatchPause
	}
	if override.AIJitter != (Jitter{}) {
		r.AIJitter = override.AIJitter
	}
	if override.RequestsPerSecond > 0 {
		r.RequestsPerSecond = override.RequestsPerSecond
	}
	if override.AIMaxAttempts > 0 {
		r.AIMaxAttempts = override.AIMaxAttempts
	}
	return r
}

// SourceConfig describes a single content source and its adapter.
type SourceConfig struct {
	Name             string            `yaml:"name"`
	Kind             string            `yaml:"kind"`
	Title            string            `yaml:"title"`
	Cron             string            `yaml:"cron"`
	ListURL          string            `yaml:"list_url"`
	ItemURL          string            `yaml:"item_url"`
	Referer          string            `yaml:"referer"`
	FallbackLatestID int64             `yaml:"fallback_latest_id"`
	Options          map[string]string `yaml:"options"`
	Run              RunConfig         `yaml:"run"`
}

// Source looks up a configured source by name.
func (c Config) Source(name string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// RunFor resolves the effective run parameters of a source.
func (c Config) RunFor(source SourceConfig) RunConfig {
	return c.Run.Merge(source.Run)
}

// Load reads YAML configuration from the path in BRIEF_SCANNER_CONFIG (if set)
// and applies environment overrides.
func Load() (Config, error) {
	return LoadFile(os.Getenv(configPathEnv), os.Getenv)
}

// LoadFile reads YAML configuration from path, or only defaults when path is
// empty, then applies overrides resolved through getenv.
func LoadFile(path string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	if getenv != nil {
		cfg.applyEnvOverrides(getenv)
	}
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks source definitions for problems that would stop a run.
func (c Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("source without name")
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("duplicate source %s", s.Name)
		}
		seen[s.Name] = struct{}{}
		switch s.Kind {
		case KindAIBase, KindHackerNews:
		default:
			return fmt.Errorf("source %s: unknown kind %q", s.Name, s.Kind)
		}
		if s.ItemURL == "" {
			return fmt.Errorf("source %s: item_url is required", s.Name)
		}
	}
	switch c.Archive.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("archive: unknown driver %q", c.Archive.Driver)
	}
	return nil
}

func (c *Config) applyEnvOverrides(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.AI.APIKey, aiAPIKeyEnv)
	set(&c.AI.BaseURL, aiBaseURLEnv)
	set(&c.AI.Model, aiModelEnv)
	set(&c.Notifications.Telegram.BotToken, telegramToken)
	set(&c.Notifications.Telegram.ChatID, telegramChatID)
	set(&c.Notifications.Ntfy.Topic, ntfyTopicEnv)
	set(&c.Notifications.Ntfy.Token, ntfyTokenEnv)
	set(&c.Notifications.NATS.URL, natsURLEnv)
	set(&c.Archive.Driver, archiveDriver)
	set(&c.Archive.DSN, archiveDSN)
	set(&c.Logging.Level, logLevelEnv)
	set(&c.Logging.Format, logFormatEnv)
}

func (c *Config) bindTimezone() error {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("scheduler: unknown timezone %s: %w", tz, err)
	}
	c.Scheduler.location = loc
	return nil
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.AI.BaseURL != "" {
		base.AI.BaseURL = override.AI.BaseURL
	}
	if override.AI.APIKey != "" {
		base.AI.APIKey = override.AI.APIKey
	}
	if override.AI.Model != "" {
		base.AI.Model = override.AI.Model
	}
	if override.AI.Timeout > 0 {
		base.AI.Timeout = override.AI.Timeout
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.APIURL != "" {
		base.Notifications.Telegram.APIURL = override.Notifications.Telegram.APIURL
	}
	if override.Notifications.Ntfy.Server != "" {
		base.Notifications.Ntfy.Server = override.Notifications.Ntfy.Server
	}
	if override.Notifications.Ntfy.Topic != "" {
		base.Notifications.Ntfy.Topic = override.Notifications.Ntfy.Topic
	}
	if override.Notifications.Ntfy.Token != "" {
		base.Notifications.Ntfy.Token = override.Notifications.Ntfy.Token
	}
	if override.Notifications.NATS.URL != "" {
		base.Notifications.NATS.URL = override.Notifications.NATS.URL
	}
	if override.Notifications.NATS.Subject != "" {
		base.Notifications.NATS.Subject = override.Notifications.NATS.Subject
	}
	if override.Notifications.Log {
		base.Notifications.Log = true
	}

	if override.Archive.Driver != "" {
		base.Archive = override.Archive
	}

	base.Run = base.Run.Merge(override.Run)

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{Timezone: defaultTimezone, location: time.Local},
		AI: AIConfig{
			BaseURL: "https://open.bigmodel.cn/api/paas/v4",
			Model:   "glm-4-flash",
			Timeout: 60 * time.Second,
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{APIURL: "https://api.telegram.org"},
			Ntfy:     NtfyConfig{Server: "https://ntfy.sh"},
			NATS:     NATSConfig{Subject: "briefs.reports"},
		},
		Run: RunConfig{
			Hours:                 24,
			MaxItems:              15,
			MaxConcurrentRequests: 10,
			MaxConcurrentAI:       3,
			BatchStep:             10,
			StallThreshold:        3,
			FetchTimeout:          15 * time.Second,
			ItemJitter:            Jitter{Min: 100 * time.Millisecond, Max: 300 * time.Millisecond},
			BatchPause:            Jitter{Min: 500 * time.Millisecond, Max: time.Second},
			AIJitter:              Jitter{Min: 300 * time.Millisecond, Max: 800 * time.Millisecond},
			AIMaxAttempts:         2,
		},
		Sources: []SourceConfig{
			{
				Name:             "aibase",
				Kind:             KindAIBase,
				Title:            "AI Morning Brief",
				Cron:             "0 7,20 * * *",
				ListURL:          "https://www.aibase.com/zh/news/",
				ItemURL:          "https://www.aibase.com/zh/news/%d",
				Referer:          "https://www.aibase.com/zh/news/",
				FallbackLatestID: 20805,
				Run: RunConfig{
					Hours:      48,
					MaxItems:   20,
					ItemJitter: Jitter{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond},
					BatchPause: Jitter{Min: 2 * time.Second, Max: 4 * time.Second},
				},
			},
			{
				Name:    "hackernews",
				Kind:    KindHackerNews,
				Title:   "Hacker News Brief",
				Cron:    "30 8 * * *",
				ListURL: "https://hacker-news.firebaseio.com/v0",
				ItemURL: "https://hacker-news.firebaseio.com/v0/item/%d.json",
				Referer: "https://news.ycombinator.com/",
				Options: map[string]string{"story_type": "top"},
				Run: RunConfig{
					MaxConcurrentRequests: 15,
					MaxConcurrentAI:       20,
					BatchStep:             10,
					MinScore:              10,
				},
			},
		},
	}
}
