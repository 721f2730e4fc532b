// Package postgresstorage stores route history in Postgres through the GORM backend.
package postgresstorage

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/wayfind/indoornav/internal/config"
	"github.com/wayfind/indoornav/internal/database"
	gormstorage "github.com/wayfind/indoornav/internal/storage/gorm"
)

// New returns a GORM backend that connects to Postgres on Init.
func New(cfg config.PostgresConfig, logger *slog.Logger) *gormstorage.Backend {
	return gormstorage.New(gormstorage.Dependencies{
		Connect: func() (*gorm.DB, error) {
			return database.GetPostgresDB(cfg)
		},
		Logger: logger,
	})
}
