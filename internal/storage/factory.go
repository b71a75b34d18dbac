package storage

import (
	"fmt"

	"campaign-engine/internal/common/errors"
	"campaign-engine/internal/config"
)

// Backend constructors, registered by the backend packages via Register.
// Indirection keeps this package free of driver imports.
var backends = map[string]func(*config.Config) (Storage, error){}

// Register makes a storage backend available under the given name.
// It is called from the backend packages' init functions.
func Register(name string, factory func(*config.Config) (Storage, error)) {
	backends[name] = factory
}

// New creates a storage adapter based on configuration
func New(cfg *config.Config) (Storage, error) {
	name := cfg.DatabaseType
	if name == "postgresql" {
		name = "postgres"
	}

	factory, ok := backends[name]
	if !ok {
		return nil, errors.ConfigError(fmt.Sprintf("unsupported database type: %s", cfg.DatabaseType))
	}

	return factory(cfg)
}
