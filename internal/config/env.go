package config

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
)

// envFiles are loaded in order. godotenv never overrides variables that
// are already set, so the process environment wins over .env and .env
// wins over .env.local.
var envFiles = []string{".env", ".env.local"}

func loadEnvFiles() {
	for _, name := range envFiles {
		if err := godotenv.Load(name); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("Failed to load environment file", "file", name, "error", err)
			}
			continue
		}
		slog.Debug("Loaded environment variables", "file", name)
	}
}
