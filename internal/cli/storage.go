package cli

import (
	"fmt"
	"log/slog"

	"github.com/wayfind/indoornav/internal/config"
	"github.com/wayfind/indoornav/internal/storage"
	"github.com/wayfind/indoornav/internal/storage/memory"
	postgresstorage "github.com/wayfind/indoornav/internal/storage/postgres"
	sqlitestorage "github.com/wayfind/indoornav/internal/storage/sqlite"
)

// createStorageBackend creates the route history backend named by cfg.Type.
// Relative output paths resolve against the config directory.
func createStorageBackend(cfg config.StorageConfig, logger *slog.Logger) (storage.Backend, error) {
	cfg.Memory.OutputDir = resolvePath(cfg.Memory.OutputDir)
	cfg.SQLite.Path = resolvePath(cfg.SQLite.Path)

	switch cfg.Type {
	case "", "none":
		return storage.Nop{}, nil
	case "memory":
		return memory.New(cfg.Memory), nil
	case "sqlite":
		return sqlitestorage.New(cfg.SQLite, logger)
	case "postgres":
		return postgresstorage.New(cfg.Postgres, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}
