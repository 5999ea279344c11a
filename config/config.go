package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LLMProvider defines the structure for LLM provider configuration.
// The APIKey field in config.yaml holds the NAME of the environment variable
// carrying the actual key; LoadConfig resolves it.
type LLMProvider struct {
	APIKey  string
	BaseURL string `mapstructure:"base_url"`
}

// PlanLimits drives the per-user rate limiter for one subscription tier.
// DelayMS is an artificial throttle applied before each admitted AI call;
// lower tiers wait longer. It smooths perceived load, it is not a hard cap.
type PlanLimits struct {
	MaxRequests int `mapstructure:"max_requests" json:"max_requests"`
	IntervalMS  int `mapstructure:"interval_ms" json:"interval_ms"`
	DelayMS     int `mapstructure:"delay_ms" json:"delay_ms"`
}

// XPRewards configures how much XP each activity is worth.
type XPRewards struct {
	LessonCompletion int `mapstructure:"lesson_completion"`
	PerCorrectAnswer int `mapstructure:"per_correct_answer"`
}

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port string
	}
	Database struct {
		DSN string // "memory" or a SQLite file path
	}
	Auth struct {
		JWTSecret     string `mapstructure:"jwt_secret"`
		TokenTTLHours int    `mapstructure:"token_ttl_hours"`
	}
	LLMSystemPrompt   string                 `mapstructure:"llm_system_prompt"`
	LLMProviders      map[string]LLMProvider `mapstructure:"llm_providers"` // provider key -> provider config
	LLMModels         map[string]string      `mapstructure:"llm_models"`    // model name -> provider key
	DefaultModel      string                 `mapstructure:"default_model"`
	PlanLimits        map[string]PlanLimits  `mapstructure:"plan_limits"` // tier name -> limits
	XPRewards         XPRewards              `mapstructure:"xp_rewards"`
	ExamQuestionCount int                    `mapstructure:"exam_question_count"`
	ChatHistoryLimit  int                    `mapstructure:"chat_history_limit"`
}

// AppConfig is the global configuration instance.
var AppConfig Config

// LoadConfig loads configuration from file and environment variables.
func LoadConfig() {
	viper.SetConfigName("config")    // Name of config file (without extension)
	viper.SetConfigType("yaml")      // REQUIRED if the config file does not have the extension in the name
	viper.AddConfigPath("./config")  // Path to look for the config file in
	viper.AddConfigPath(".")         // Optionally look for config in the working directory
	viper.AddConfigPath("../config") // For running from locations like tests

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("database.dsn", "memory")
	viper.SetDefault("auth.token_ttl_hours", 72)
	viper.SetDefault("default_model", "gpt-4o-mini")
	viper.SetDefault("exam_question_count", 5)
	viper.SetDefault("chat_history_limit", 10)
	viper.SetDefault("xp_rewards.lesson_completion", 20)
	viper.SetDefault("xp_rewards.per_correct_answer", 10)
	// Tier limits: capacity per sliding window, window length, pre-call delay.
	viper.SetDefault("plan_limits.free", map[string]interface{}{"max_requests": 5, "interval_ms": 60000, "delay_ms": 3000})
	viper.SetDefault("plan_limits.plus", map[string]interface{}{"max_requests": 15, "interval_ms": 60000, "delay_ms": 1000})
	viper.SetDefault("plan_limits.pro", map[string]interface{}{"max_requests": 40, "interval_ms": 60000, "delay_ms": 0})

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("WARN: [Config] Configuration file (config.yaml) not found. Using environment variables and defaults.")
		} else {
			log.Fatalf("FATAL: [Config] Error reading configuration file: %v", err)
		}
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("FATAL: [Config] Failed to unmarshal configuration into AppConfig struct: %v", err)
	}

	// Environment variable overrides
	if port := os.Getenv("SERVER_PORT"); port != "" {
		AppConfig.Server.Port = port
		log.Printf("INFO: [Config] Server port overridden by environment variable SERVER_PORT: %s", port)
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		AppConfig.Auth.JWTSecret = secret
		log.Println("INFO: [Config] JWT secret loaded from environment variable JWT_SECRET.")
	}
	if AppConfig.Auth.JWTSecret == "" {
		log.Println("WARN: [Config] Auth JWT secret is not set. Issued tokens will not survive a restart review; set JWT_SECRET for deployments.")
	}

	// Load API keys for LLM providers from environment variables
	for providerKey, providerConfig := range AppConfig.LLMProviders {
		envVarNameForKey := providerConfig.APIKey // Assumes APIKey field stores the name of the environment variable
		if envValue := os.Getenv(envVarNameForKey); envValue != "" {
			updatedConfig := providerConfig
			updatedConfig.APIKey = envValue // Replace placeholder with actual key
			AppConfig.LLMProviders[providerKey] = updatedConfig
			log.Printf("INFO: [Config] Loaded API Key for provider '%s' from environment variable '%s'.", providerKey, envVarNameForKey)
		} else if providerConfig.APIKey != "" && !strings.HasSuffix(providerConfig.APIKey, "_KEY") {
			log.Printf("WARN: [Config] API Key for provider '%s' is directly set in config.yaml and not overridden by env var '%s'. Consider using env vars for keys.", providerKey, envVarNameForKey)
		} else {
			log.Printf("WARN: [Config] API Key for provider '%s' (env var '%s') is not set and not provided directly in config.", providerKey, envVarNameForKey)
		}
	}

	// Correctly load LLMModels if viper.Unmarshal didn't populate map[string]string
	if len(AppConfig.LLMModels) == 0 && viper.IsSet("llm_models") {
		log.Println("INFO: [Config] LLMModels map is empty, attempting manual load from Viper.")
		AppConfig.LLMModels = viper.GetStringMapString("llm_models")
		if len(AppConfig.LLMModels) > 0 {
			log.Println("INFO: [Config] Successfully manually loaded LLMModels:", AppConfig.LLMModels)
		} else {
			log.Println("WARN: [Config] Failed to load llm_models from configuration.")
		}
	}

	if len(AppConfig.PlanLimits) == 0 {
		log.Println("WARN: [Config] No plan limits configured; all tiers will fall back to free-tier limits.")
	}

	log.Println("INFO: [Config] Configuration loading complete.")
}

// PlanLimitsFor resolves the rate-limit configuration for a tier name,
// falling back to the free tier, then to a conservative built-in default.
func PlanLimitsFor(tier string) PlanLimits {
	if limits, ok := AppConfig.PlanLimits[tier]; ok {
		return limits
	}
	if limits, ok := AppConfig.PlanLimits["free"]; ok {
		log.Printf("WARN: [Config] Unknown plan tier '%s', falling back to free-tier limits.", tier)
		return limits
	}
	return PlanLimits{MaxRequests: 5, IntervalMS: 60000, DelayMS: 3000}
}
