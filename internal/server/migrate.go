package server

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies database migrations from the given directory.
// dir example: file://migrations
func Migrate(dir string, dsn string, direction string, steps int) error {
	if dir == "" {
		dir = "file://migrations"
	}
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
		if dsn == "" {
			host := getEnvDefault("STUDYGEN_STORAGE_POSTGRES_HOST", "localhost")
			port := getEnvDefault("STUDYGEN_STORAGE_POSTGRES_PORT", "5432")
			user := os.Getenv("STUDYGEN_STORAGE_POSTGRES_USER")
			pass := os.Getenv("STUDYGEN_STORAGE_POSTGRES_PASSWORD")
			db := os.Getenv("STUDYGEN_STORAGE_POSTGRES_DBNAME")
			ssl := getEnvDefault("STUDYGEN_STORAGE_POSTGRES_SSLMODE", "disable")
			dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
		}
	}

	m, err := migrate.New(dir, dsn)
	if err != nil {
		return err
	}
	var merr error
	switch direction {
	case "up":
		if steps > 0 {
			merr = m.Steps(steps)
		} else {
			merr = m.Up()
		}
	case "down":
		if steps > 0 {
			merr = m.Steps(-steps)
		} else {
			merr = m.Down()
		}
	default:
		return fmt.Errorf("unknown direction: %s", direction)
	}
	if errors.Is(merr, migrate.ErrNoChange) {
		return nil
	}
	return merr
}

func getEnvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
