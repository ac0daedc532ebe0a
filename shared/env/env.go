package env

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	TelegramBotToken string
	TelegramGroupID  int64
	DealsThreadID    int
	SystemThreadID   int

	ParsersBaseURL    string
	ParsersAuthToken  string
	IngestAuthHeader  string
	ListingsFeedURL   string
	ListingsAuthToken string

	RedisURL string

	Port string

	DATABASE_URL string

	PGHOST     string
	PGPORT     string
	PGUSER     string
	PGPASSWORD string
	PGDATABASE string

	LOCAL_DATABASE_HOST     string
	LOCAL_DATABASE_PORT     string
	LOCAL_DATABASE_USER     string
	LOCAL_DATABASE_PASSWORD string
	LOCAL_DATABASE_NAME     string
)

func loadEnvVariable(key string, isRequired bool) string {
	value := os.Getenv(key)
	if isRequired && value == "" {
		log.Fatalf("FATAL: Environment variable %s is required but not set.", key)
	}
	isHidden := key == "TELEGRAM_BOT_TOKEN" || key == "PARSERS_AUTH_TOKEN" || key == "LISTINGS_AUTH_TOKEN" || key == "INGEST_AUTH_HEADER" || key == "LOCAL_DATABASE_PASSWORD" || key == "PGPASSWORD" || key == "DATABASE_URL" || key == "REDIS_URL"
	if value == "" {
		if !isRequired {
			log.Printf("INFO: Environment variable %s is not set.", key)
		}
	} else if isHidden {
		log.Printf("INFO: Loaded %s (value hidden)", key)
	} else {
		log.Printf("INFO: Loaded %s = %s", key, value)
	}
	return value
}

func loadIntEnv(key string, required bool) int {
	strValue := loadEnvVariable(key, required)
	if strValue == "" {
		if !required {
			log.Printf("INFO: Optional integer environment variable %s is missing, defaulting to 0.", key)
			return 0
		}
		log.Fatalf("FATAL: Required integer environment variable %s is missing after load.", key)
		return 0
	}
	id, err := strconv.Atoi(strValue)
	if err != nil {
		log.Fatalf("FATAL: Failed to parse integer environment variable %s='%s': %v", key, strValue, err)
	}
	return id
}

func loadInt64Env(key string, required bool) int64 {
	strValue := loadEnvVariable(key, required)
	if strValue == "" {
		if !required {
			log.Printf("INFO: Optional int64 environment variable %s is missing, defaulting to 0.", key)
			return 0
		}
		log.Fatalf("FATAL: Required int64 environment variable %s is missing after load.", key)
		return 0
	}
	id, err := strconv.ParseInt(strValue, 10, 64)
	if err != nil {
		log.Fatalf("FATAL: Failed to parse int64 environment variable %s='%s': %v", key, strValue, err)
	}
	return id
}

func LoadEnv() error {
	err := godotenv.Load()
	if err != nil {
		log.Println("INFO: .env file not found or error loading, relying on system environment variables.")
	} else {
		log.Println("INFO: .env file loaded successfully.")
	}

	TelegramBotToken = loadEnvVariable("TELEGRAM_BOT_TOKEN", false)

	ParsersBaseURL = loadEnvVariable("PARSERS_BASE_URL", true)
	ParsersAuthToken = loadEnvVariable("PARSERS_AUTH_TOKEN", false)
	IngestAuthHeader = loadEnvVariable("INGEST_AUTH_HEADER", false)

	ListingsFeedURL = os.Getenv("LISTINGS_FEED_URL_PROD")
	if ListingsFeedURL == "" {
		log.Println("INFO: LISTINGS_FEED_URL_PROD not set, trying LISTINGS_FEED_URL_DEV.")
		ListingsFeedURL = loadEnvVariable("LISTINGS_FEED_URL_DEV", false)
	} else {
		log.Println("INFO: Using LISTINGS_FEED_URL_PROD.")
	}
	ListingsAuthToken = loadEnvVariable("LISTINGS_AUTH_TOKEN", false)

	RedisURL = loadEnvVariable("REDIS_URL", false)

	Port = loadEnvVariable("PORT", false)
	if Port == "" {
		Port = "8080"
		log.Printf("INFO: PORT not set, defaulting to %s", Port)
	}

	TelegramGroupID = loadInt64Env("TELEGRAM_GROUP_ID", false)
	DealsThreadID = loadIntEnv("DEALS_THREAD_ID", false)
	SystemThreadID = loadIntEnv("SYSTEM_THREAD_ID", false)

	DATABASE_URL = loadEnvVariable("DATABASE_URL", false)

	PGHOST = loadEnvVariable("PGHOST", false)
	PGPORT = loadEnvVariable("PGPORT", false)
	PGUSER = loadEnvVariable("PGUSER", false)
	PGPASSWORD = loadEnvVariable("PGPASSWORD", false)
	PGDATABASE = loadEnvVariable("PGDATABASE", false)

	LOCAL_DATABASE_HOST = loadEnvVariable("LOCAL_DATABASE_HOST", false)
	LOCAL_DATABASE_PORT = loadEnvVariable("LOCAL_DATABASE_PORT", false)
	LOCAL_DATABASE_USER = loadEnvVariable("LOCAL_DATABASE_USER", false)
	LOCAL_DATABASE_PASSWORD = loadEnvVariable("LOCAL_DATABASE_PASSWORD", false)
	LOCAL_DATABASE_NAME = loadEnvVariable("LOCAL_DATABASE_NAME", false)

	if DATABASE_URL == "" {
		log.Println("WARN: DATABASE_URL is not set. Connection logic might rely on PG* or LOCAL_* variables.")
	}
	if IngestAuthHeader == "" {
		log.Println("WARN: INGEST_AUTH_HEADER is not set. The listings webhook endpoint will be unsecured.")
	}
	if TelegramBotToken != "" && TelegramGroupID == 0 {
		log.Println("WARN: TELEGRAM_BOT_TOKEN is set, but TELEGRAM_GROUP_ID is missing, invalid, or zero.")
	}
	if TelegramBotToken != "" && DealsThreadID == 0 {
		log.Println("WARN: DEALS_THREAD_ID is missing or invalid (0). Recommended cars will not be sent to the specific topic.")
	}
	if RedisURL == "" {
		log.Println("WARN: REDIS_URL is not set. Relevance recalculation will run without a distributed lock.")
	}

	log.Println("INFO: Environment variables loading process complete.")
	return nil
}
