package database

import (
	"database/sql"
	"log"
	"os"

	"bidhub/agent/internal/models"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// MigrateDatabase handles database migrations using GORM's AutoMigrate and raw SQL as a fallback
func MigrateDatabase(dsn string) {
	env := os.Getenv("APP_ENV")
	log.Printf("Running migrations for environment: %s", env)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to the database with GORM: %v", err)
	}

	log.Println("Running GORM migrations...")
	err = DB.AutoMigrate(
		&models.Car{},
		&models.Photo{},
		&models.ConditionAssessment{},
		&models.CarSaleHistory{},
		&models.CarPart{},
		&models.Filter{},
		&models.Fee{},
		&models.ROI{},
		&models.CarInventory{},
		&models.CarInventoryInvestment{},
		&models.History{},
	)
	if err != nil {
		log.Fatalf("Failed to perform GORM migrations: %v", err)
	}
	log.Println("GORM migrations executed successfully.")

	// Use raw SQL migrations as a safety fallback
	dbSQL, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to connect to the database with SQL: %v", err)
	}
	defer dbSQL.Close()

	executeSQLMigrations(dbSQL, env)
}

// executeSQLMigrations performs raw SQL migrations as a fallback
func executeSQLMigrations(db *sql.DB, env string) {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS cars (
            id SERIAL PRIMARY KEY,
            vin TEXT UNIQUE NOT NULL,
            auction TEXT NOT NULL,
            make TEXT NOT NULL,
            relevance_status TEXT DEFAULT 'IRRELEVANT',
            car_status TEXT DEFAULT 'NEW',
            recommendation_status TEXT DEFAULT 'NOT_RECOMMENDED',
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS filters (
            id SERIAL PRIMARY KEY,
            make TEXT NOT NULL,
            model TEXT,
            year_from INT DEFAULT 0,
            year_to INT DEFAULT 3000,
            odometer_min INT DEFAULT 0,
            odometer_max INT DEFAULT 10000000,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS fees (
            id SERIAL PRIMARY KEY,
            auction TEXT NOT NULL,
            fee_type TEXT NOT NULL,
            price_from FLOAT NOT NULL,
            price_to FLOAT NOT NULL,
            amount FLOAT NOT NULL,
            is_percent BOOLEAN DEFAULT FALSE
        );`,
		`CREATE TABLE IF NOT EXISTS rois (
            id SERIAL PRIMARY KEY,
            roi FLOAT NOT NULL,
            profit_margin FLOAT NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_cars_relevance_checked
            ON cars (relevance_status, is_checked);`,
	}

	// Apply environment-specific constraints
	if env == "production" || env == "staging" {
		queries = append(queries,
			`ALTER TABLE cars ADD CONSTRAINT cars_attempts_nonnegative CHECK (attempts >= 0);`,
		)
	}

	for _, query := range queries {
		_, err := db.Exec(query)
		if err != nil {
			log.Printf("WARN: Raw SQL migration step failed (may already be applied): %v", err)
		}
	}
	log.Println("Raw SQL migrations executed successfully.")
}
