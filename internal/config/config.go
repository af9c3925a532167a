package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr                 = ":8000"
	defaultExternalHTTPTimeoutSeconds = 30
	defaultScanIntervalMinutes        = 30
	defaultScanTimeFilter             = "week"
	defaultScanLimit                  = 50
	defaultLLMMaxAnalyze              = 5
	defaultLLMRequestsPerMinute       = 20
	defaultTaskTagBonus               = 1
)

var defaultTaskSubreddits = []string{"slavelabour", "forhire", "hiring", "freelance"}

var validTimeFilters = map[string]bool{
	"hour": true, "day": true, "week": true, "month": true, "year": true, "all": true,
}

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`

	PatternsPath string `yaml:"patterns_path"`
	TaskTagBonus *int   `yaml:"task_tag_bonus"`

	RedditUserAgent     string   `yaml:"reddit_user_agent"`
	TaskSubreddits      []string `yaml:"task_subreddits"`
	TaskKeyword         string   `yaml:"task_keyword"`
	ScanTimeFilter      string   `yaml:"scan_time_filter"`
	ScanLimit           int      `yaml:"scan_limit"`
	ScanIntervalMinutes int      `yaml:"scan_interval_minutes"`
	ScanSchedule        string   `yaml:"scan_schedule"`
	AutoScanOnStart     bool     `yaml:"auto_scan_on_start"`

	LLMProvider          string   `yaml:"llm_provider"`
	LLMModel             string   `yaml:"llm_model"`
	LLMAPIURL            string   `yaml:"llm_api_url"`
	AnthropicAPIKey      string   `yaml:"anthropic_api_key"`
	OpenAIAPIKey         string   `yaml:"openai_api_key"`
	LLMMaxAnalyze        int      `yaml:"llm_max_analyze"`
	LLMRequestsPerMinute int      `yaml:"llm_requests_per_minute"`
	LLMSkillProfile      []string `yaml:"llm_skill_profile"`

	SlackBotToken    string `yaml:"slack_bot_token"`
	SlackChannelID   string `yaml:"slack_channel_id"`
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
	PushPlusToken    string `yaml:"pushplus_token"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`
}

// LoadConfig reads .env (if present), then config.yaml (or CONFIG_PATH),
// then environment overrides, applies defaults and validates. Invalid
// values are fatal. Every integration is optional.
func LoadConfig() Config {
	loadDotEnv()

	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.LogFormat, "LOG_FORMAT")
	envOverride(&cfg.PatternsPath, "PATTERNS_PATH")
	if val := os.Getenv("TASK_TAG_BONUS"); val != "" {
		n := 0
		envOverrideInt(&n, "TASK_TAG_BONUS")
		cfg.TaskTagBonus = &n
	}
	envOverride(&cfg.RedditUserAgent, "REDDIT_USER_AGENT")
	envOverrideList(&cfg.TaskSubreddits, "TASK_SUBREDDITS", ",")
	envOverride(&cfg.TaskKeyword, "TASK_KEYWORD")
	envOverride(&cfg.ScanTimeFilter, "SCAN_TIME_FILTER")
	envOverrideInt(&cfg.ScanLimit, "SCAN_LIMIT")
	envOverrideInt(&cfg.ScanIntervalMinutes, "SCAN_INTERVAL_MINUTES")
	envOverrideAllowEmpty(&cfg.ScanSchedule, "SCAN_SCHEDULE")
	envOverrideBool(&cfg.AutoScanOnStart, "AUTO_SCAN_ON_START")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.LLMAPIURL, "LLM_API_URL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverrideInt(&cfg.LLMMaxAnalyze, "LLM_MAX_ANALYZE")
	envOverrideInt(&cfg.LLMRequestsPerMinute, "LLM_REQUESTS_PER_MINUTE")
	envOverrideList(&cfg.LLMSkillProfile, "LLM_SKILL_PROFILE", ";")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	envOverride(&cfg.TelegramChatID, "TELEGRAM_CHAT_ID")
	envOverride(&cfg.PushPlusToken, "PUSHPLUS_TOKEN")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.TaskTagBonus == nil {
		n := defaultTaskTagBonus
		cfg.TaskTagBonus = &n
	}
	if len(cfg.TaskSubreddits) == 0 {
		cfg.TaskSubreddits = append([]string(nil), defaultTaskSubreddits...)
	}
	if cfg.ScanTimeFilter == "" {
		cfg.ScanTimeFilter = defaultScanTimeFilter
	}
	if cfg.ScanLimit == 0 {
		cfg.ScanLimit = defaultScanLimit
	}
	if cfg.ScanIntervalMinutes == 0 {
		cfg.ScanIntervalMinutes = defaultScanIntervalMinutes
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "openai"
	}
	if cfg.LLMMaxAnalyze == 0 {
		cfg.LLMMaxAnalyze = defaultLLMMaxAnalyze
	}
	if cfg.LLMRequestsPerMinute == 0 {
		cfg.LLMRequestsPerMinute = defaultLLMRequestsPerMinute
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}

	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		log.Fatalf("invalid log_level '%s': %v", cfg.LogLevel, err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		log.Fatalf("log_format must be 'text' or 'json', got '%s'", cfg.LogFormat)
	}
	if *cfg.TaskTagBonus < 0 {
		log.Fatalf("invalid task_tag_bonus '%d': must be >= 0", *cfg.TaskTagBonus)
	}
	if !validTimeFilters[cfg.ScanTimeFilter] {
		log.Fatalf("invalid scan_time_filter '%s': must be one of hour, day, week, month, year, all", cfg.ScanTimeFilter)
	}
	if cfg.ScanLimit < 1 || cfg.ScanLimit > 100 {
		log.Fatalf("invalid scan_limit '%d': must be between 1 and 100", cfg.ScanLimit)
	}
	if cfg.ScanIntervalMinutes < 1 {
		log.Fatalf("invalid scan_interval_minutes '%d': must be >= 1", cfg.ScanIntervalMinutes)
	}
	if s := strings.TrimSpace(cfg.ScanSchedule); s != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(s); err != nil {
			log.Fatalf("invalid scan_schedule '%s': %v", s, err)
		}
	}
	switch cfg.LLMProvider {
	case "anthropic", "openai":
	default:
		log.Fatalf("llm_provider must be 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}
	if cfg.LLMMaxAnalyze < 0 {
		log.Fatalf("invalid llm_max_analyze '%d': must be >= 0", cfg.LLMMaxAnalyze)
	}
	if cfg.LLMRequestsPerMinute < 0 {
		log.Fatalf("invalid llm_requests_per_minute '%d': must be >= 0", cfg.LLMRequestsPerMinute)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 5 {
		log.Fatalf("invalid external_http_timeout_seconds '%d': must be >= 5", cfg.ExternalHTTPTimeoutSeconds)
	}

	if !cfg.LLMConfigured() {
		log.Printf("LLM key for provider %s not set; AI analysis disabled", cfg.LLMProvider)
	}
	if !cfg.AnyChannelConfigured() {
		log.Printf("WARNING: no notification channel configured; matches are only logged")
	}

	return cfg
}

func loadDotEnv() {
	path := ".env"
	if envPath := os.Getenv("DOTENV_PATH"); envPath != "" {
		path = envPath
	}
	if err := godotenv.Load(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("Error loading %s: %v", path, err)
		}
		return
	}
	log.Printf("Loaded environment from %s", path)
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

// envOverrideList replaces field with the sep-separated entries of the
// variable, dropping blanks.
func envOverrideList(field *[]string, envKey, sep string) {
	val := os.Getenv(envKey)
	if val == "" {
		return
	}
	*field = nil
	for _, item := range strings.Split(val, sep) {
		item = strings.TrimSpace(item)
		if item != "" {
			*field = append(*field, item)
		}
	}
}

func (c Config) LLMConfigured() bool {
	switch c.LLMProvider {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	}
	return false
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

func (c Config) TelegramConfigured() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

func (c Config) PushPlusConfigured() bool {
	return c.PushPlusToken != ""
}

func (c Config) AnyChannelConfigured() bool {
	return c.SlackConfigured() || c.TelegramConfigured() || c.PushPlusConfigured()
}
