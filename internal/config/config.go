package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

type Config struct {
    Port       string
    DBHost     string
    DBPort     string
    DBUser     string
    DBPassword string
    DBName     string
    DBSSLMode  string
    JWTSecret  string // empty disables bearer auth on /api/v1
    LogLevel   string
    // Completion endpoint
    AnthropicAPIKey    string
    LLMBaseURL         string
    LLMModel           string
    LLMMaxTokens       string
    LLMTemperature     string
    LLMTimeout         string // Go duration, e.g. "120s"
    PromptSummaryLimit string // characters
    // Local fallback store
    LocalCachePath     string
    LocalCacheInMemory string
    // Board export
    BoardAPIURL         string
    BoardWebURL         string
    BoardAPIKey         string
    ExportCardDelayMS   string
    ExportMaxRetries    string
    ExportBackoffBaseMS string
}

func Load() *Config {
    return &Config{
        Port:       getenv("PORT", "8080"),
        DBHost:     getenv("DB_HOST", "localhost"),
        DBPort:     getenv("DB_PORT", "5432"),
        DBUser:     getenv("DB_USER", "postgres"),
        DBPassword: getenv("DB_PASSWORD", "postgres"),
        DBName:     getenv("DB_NAME", "uiflow_db"),
        DBSSLMode:  getenv("DB_SSLMODE", "disable"),
        JWTSecret:  getenv("JWT_SECRET", ""),
        LogLevel:   getenv("LOG_LEVEL", "info"),
        AnthropicAPIKey:    getenv("ANTHROPIC_API_KEY", ""),
        LLMBaseURL:         getenv("LLM_BASE_URL", ""),
        LLMModel:           getenv("LLM_MODEL", "claude-sonnet-4-20250514"),
        LLMMaxTokens:       getenv("LLM_MAX_TOKENS", "4096"),
        LLMTemperature:     getenv("LLM_TEMPERATURE", "0.7"),
        LLMTimeout:         getenv("LLM_TIMEOUT", "120s"),
        PromptSummaryLimit: getenv("PROMPT_SUMMARY_LIMIT", "800"),
        LocalCachePath:     getenv("LOCAL_CACHE_PATH", "data/localcache"),
        LocalCacheInMemory: getenv("LOCAL_CACHE_IN_MEMORY", "false"),
        BoardAPIURL:         getenv("BOARD_API_URL", "https://api.trello.com/1"),
        BoardWebURL:         getenv("BOARD_WEB_URL", "https://trello.com"),
        BoardAPIKey:         getenv("BOARD_API_KEY", ""),
        ExportCardDelayMS:   getenv("EXPORT_CARD_DELAY_MS", "300"),
        ExportMaxRetries:    getenv("EXPORT_MAX_RETRIES", "3"),
        ExportBackoffBaseMS: getenv("EXPORT_BACKOFF_BASE_MS", "1000"),
    }
}

// GenerationTimeout is the hard deadline for one completion call.
func (c *Config) GenerationTimeout() time.Duration {
    d, err := time.ParseDuration(c.LLMTimeout)
    if err != nil || d <= 0 {
        return 120 * time.Second
    }
    return d
}

func (c *Config) MaxTokens() int {
    return atoiOr(c.LLMMaxTokens, 4096)
}

func (c *Config) Temperature() float64 {
    v, err := strconv.ParseFloat(strings.TrimSpace(c.LLMTemperature), 64)
    if err != nil || v < 0 {
        return 0.7
    }
    return v
}

func (c *Config) SummaryLimit() int {
    return atoiOr(c.PromptSummaryLimit, 800)
}

func (c *Config) CacheInMemory() bool {
    v, _ := strconv.ParseBool(strings.TrimSpace(c.LocalCacheInMemory))
    return v
}

func (c *Config) CardDelay() time.Duration {
    return time.Duration(atoiOr(c.ExportCardDelayMS, 300)) * time.Millisecond
}

func (c *Config) MaxRetries() int {
    return atoiOr(c.ExportMaxRetries, 3)
}

func (c *Config) BackoffBase() time.Duration {
    return time.Duration(atoiOr(c.ExportBackoffBaseMS, 1000)) * time.Millisecond
}

func atoiOr(raw string, fallback int) int {
    n, err := strconv.Atoi(strings.TrimSpace(raw))
    if err != nil || n < 0 {
        return fallback
    }
    return n
}

func getenv(key, fallback string) string {
    v := os.Getenv(key)
    if v == "" {
        return fallback
    }
    return v
}
