package config

import (
	"fmt"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"
)

// Load reads configuration from the environment. A .env file is applied
// first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to bind environment config: %w", err)
	}
	return cfg, nil
}
