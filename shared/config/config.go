package config

import (
	"log"
	"sync"

	"github.com/spf13/viper"
)

// AuctionConfig defines the structure for individual auction sources
type AuctionConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// TelegramConfig defines the structure for Telegram-related configurations
type TelegramConfig struct {
	BotToken           string `mapstructure:"bot_token"`
	GroupID            int64  `mapstructure:"group_id"`
	DealsThreadID      int64  `mapstructure:"deals_thread_id"`
	SystemLogsThreadID int64  `mapstructure:"system_logs_thread_id"`
}

// RefreshConfig controls the background enrichment loop
type RefreshConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
	MaxAttempts     int `mapstructure:"max_attempts"`
	BatchSize       int `mapstructure:"batch_size"`
}

// Config defines the global configuration structure
type Config struct {
	App struct {
		Port        string `mapstructure:"port"`
		Environment string `mapstructure:"environment"`
	} `mapstructure:"app"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`

	Database struct {
		URI  string `mapstructure:"uri"`
		Name string `mapstructure:"name"`
	} `mapstructure:"database"`

	Parsers struct {
		BaseURL   string `mapstructure:"base_url"`
		AuthToken string `mapstructure:"auth_token"`
	} `mapstructure:"parsers"`

	Auctions map[string]AuctionConfig `mapstructure:"auctions"`

	Redis struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"redis"`

	Refresh RefreshConfig `mapstructure:"refresh"`

	Telegram TelegramConfig `mapstructure:"telegram"`
}

var (
	globalConfig *Config
	configLock   sync.RWMutex
)

// LoadConfig loads configuration from the specified file path and merges it with environment variables
func LoadConfig(path string) (*Config, error) {
	log.Printf("Starting to load configuration from file: %s", path)

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	viper.SetEnvPrefix("APP")
	viper.BindEnv("app.port", "PORT")
	viper.BindEnv("app.environment", "ENVIRONMENT")
	viper.BindEnv("parsers.base_url", "PARSERS_BASE_URL")
	viper.BindEnv("parsers.auth_token", "PARSERS_AUTH_TOKEN")
	viper.BindEnv("redis.url", "REDIS_URL")

	viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	viper.BindEnv("telegram.group_id", "TELEGRAM_GROUP_ID")
	viper.BindEnv("telegram.deals_thread_id", "DEALS_THREAD_ID")
	viper.BindEnv("telegram.system_logs_thread_id", "SYSTEM_THREAD_ID")

	var cfg Config

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		log.Printf("Error unmarshalling configuration: %v", err)
		return nil, err
	}

	if cfg.Refresh.IntervalMinutes <= 0 {
		cfg.Refresh.IntervalMinutes = 15
	}
	if cfg.Refresh.MaxAttempts <= 0 {
		cfg.Refresh.MaxAttempts = 3
	}
	if cfg.Refresh.BatchSize <= 0 {
		cfg.Refresh.BatchSize = 50
	}

	log.Printf("Loaded configuration from file: %s", path)
	return &cfg, nil
}

// SetGlobalConfig sets the loaded configuration globally
func SetGlobalConfig(cfg *Config) {
	configLock.Lock()
	defer configLock.Unlock()
	globalConfig = cfg
}

// GetGlobalConfig retrieves the globally set configuration
func GetGlobalConfig() *Config {
	configLock.RLock()
	defer configLock.RUnlock()
	if globalConfig == nil {
		log.Println("GetGlobalConfig: Global configuration is nil.")
	}
	return globalConfig
}

// GetAuctionConfig retrieves the configuration for a specific auction source by name.
func GetAuctionConfig(name string) (AuctionConfig, bool) {
	cfg := GetGlobalConfig()
	if cfg == nil {
		log.Println("GetAuctionConfig: Global configuration is nil. Ensure that LoadConfig is called before using GetAuctionConfig.")
		return AuctionConfig{}, false
	}

	auctionConfig, exists := cfg.Auctions[name]
	if !exists {
		log.Printf("GetAuctionConfig: Auction %s not found in configuration.", name)
	}
	return auctionConfig, exists
}
