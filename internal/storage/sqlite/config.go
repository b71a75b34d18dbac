package sqlite

import (
	"fmt"
)

// Config holds SQLite-specific storage configuration
type Config struct {
	DatabasePath string `json:"database_path"`
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}
