package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port    string
	DataDir string // cache database + scraper output live under here

	// Scraper configuration
	CouncilAgendaURL string
	ScraperOutputDir string
	ScrapeTimeout    time.Duration
	ChromePath       string // optional explicit Chrome/Chromium binary
	AllowLiveScrape  bool   // gates POST /api/refresh and any live browser run

	// Extraction (LLM) configuration
	LLMBaseURL        string // OpenAI-compatible endpoint
	LLMAPIKey         string
	LLMModel          string
	ExtractionTimeout time.Duration

	// Background refresh job
	RefreshScheduleEnabled bool

	AllowedOrigins string
	Environment    string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	dataDir := getEnv("DATA_DIR", "./data")

	return &Config{
		Port:    getEnv("PORT", "8080"),
		DataDir: dataDir,

		CouncilAgendaURL: getEnv("COUNCIL_AGENDA_URL", "https://secure.toronto.ca/council/#/committees/2462/20862"),
		ScraperOutputDir: getEnv("SCRAPER_OUTPUT_DIR", dataDir+"/scraper"),
		ScrapeTimeout:    getDurationEnv("SCRAPE_TIMEOUT", 180*time.Second),
		ChromePath:       getEnv("CHROME_PATH", ""),
		AllowLiveScrape:  getBoolEnv("ALLOW_LIVE_SCRAPE", false),

		LLMBaseURL:        getEnv("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMAPIKey:         getEnv("LLM_API_KEY", os.Getenv("GOOGLE_API_KEY")),
		LLMModel:          getEnv("LLM_MODEL", "gemini-3-flash-preview"),
		ExtractionTimeout: getDurationEnv("EXTRACTION_TIMEOUT", 60*time.Second),

		RefreshScheduleEnabled: getBoolEnv("REFRESH_SCHEDULE_ENABLED", false),

		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		Environment:    getEnv("ENVIRONMENT", "development"),
	}
}

// Validate checks configuration combinations that would only fail later
// at request time. An LLM key is required because detail requests build
// caches on demand; a server without one could never serve an uncached
// meeting.
func (c *Config) Validate() error {
	if c.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY (or GOOGLE_API_KEY) is required for motion extraction; get a key at https://aistudio.google.com/apikey")
	}
	if c.RefreshScheduleEnabled && !c.AllowLiveScrape {
		return fmt.Errorf("REFRESH_SCHEDULE_ENABLED=true requires ALLOW_LIVE_SCRAPE=true")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
