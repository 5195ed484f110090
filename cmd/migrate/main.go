package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/config"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/repository/postgres"
)

func main() {
	_ = godotenv.Load(".env")

	// Only the database settings are needed here, so the full config.Load is skipped
	dbCfg := config.DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "storefront_checkout"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	ctx := context.Background()

	// First, connect to the postgres database to create the target database if needed
	adminCfg := dbCfg
	adminCfg.DBName = "postgres"
	adminDB, err := sql.Open("postgres", postgres.DSN(adminCfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to postgres database: %v\n", err)
		os.Exit(1)
	}
	defer adminDB.Close()

	var exists bool
	err = adminDB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbCfg.DBName,
	).Scan(&exists)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to check database existence: %v\n", err)
		os.Exit(1)
	}
	if !exists {
		fmt.Printf("Database '%s' does not exist. Creating...\n", dbCfg.DBName)
		if _, err := adminDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %q", dbCfg.DBName)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create database: %v\n", err)
			os.Exit(1)
		}
	}

	db, err := postgres.NewConnection(ctx, dbCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// Every *.up.sql under migrations/ in name order, or the files given as arguments
	files := os.Args[1:]
	if len(files) == 0 {
		files, err = filepath.Glob(filepath.Join("migrations", "*.up.sql"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list migrations: %v\n", err)
			os.Exit(1)
		}
		sort.Strings(files)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "No migration files found")
		os.Exit(1)
	}

	for _, path := range files {
		sqlBytes, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read migration file: %v\n", err)
			os.Exit(1)
		}

		if _, err := db.ExecContext(ctx, string(sqlBytes)); err != nil {
			if !strings.Contains(err.Error(), "already exists") {
				fmt.Fprintf(os.Stderr, "Error executing %s: %v\n", path, err)
				os.Exit(1)
			}
			fmt.Printf("%s already applied (some objects already exist)\n", path)
			continue
		}
		fmt.Printf("Applied %s\n", path)
	}

	fmt.Println("Migration completed successfully!")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
