package main

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer pool.Close()

	log.Println("Connected to database, running migrations...")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS price_history (
			asset TEXT NOT NULL,
			ts BIGINT NOT NULL,
			price NUMERIC NOT NULL,
			alert_triggered BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		"CREATE INDEX IF NOT EXISTS idx_price_history_asset_ts ON price_history (asset, ts DESC)",
	}

	for _, migration := range migrations {
		log.Printf("Running: %s", migration)
		_, err := pool.Exec(ctx, migration)
		if err != nil {
			log.Printf("WARNING: Migration failed: %v", err)
		} else {
			log.Println("✓ Success")
		}
	}

	log.Println("All migrations completed")
}
