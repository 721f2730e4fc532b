package database

import (
	"fmt"
	"os"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wayfind/indoornav/internal/config"
)

// MemoryDSN is the shared in-memory SQLite database used when no file path is set.
const MemoryDSN = "file::memory:?cache=shared"

var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA cache_size = -32000;",
	"PRAGMA temp_store = MEMORY;",
	"PRAGMA foreign_keys = ON;",
}

// GetPostgresDB returns a connection to the Postgres database.
func GetPostgresDB(cfg config.PostgresConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
	)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// GetSqliteDB returns a connection to a SQLite database.
// If path is empty, uses the shared in-memory database.
func GetSqliteDB(path string) (*gorm.DB, error) {
	if path == "" {
		return OpenSqlite(MemoryDSN)
	}
	return OpenSqlite(path)
}

// GetNamedMemoryDB returns a private in-memory SQLite database. Connections
// opened with the same name share data.
func GetNamedMemoryDB(name string) (*gorm.DB, error) {
	return OpenSqlite("file:" + name + "?mode=memory&cache=shared")
}

// OpenSqlite opens dsn and applies the PRAGMAs shared by every SQLite database.
func OpenSqlite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	return db, nil
}

// DumpMemoryDBToDisk vacuums the in-memory database to a disk file.
func DumpMemoryDBToDisk(db *gorm.DB, sqliteFilePath string) error {
	if sqliteFilePath == "" {
		return fmt.Errorf("sqlite file path not set")
	}

	// VACUUM INTO refuses to overwrite
	if _, err := os.Stat(sqliteFilePath); err == nil {
		if err := os.Remove(sqliteFilePath); err != nil {
			return fmt.Errorf("error removing existing DB file: %w", err)
		}
	}

	err := db.Exec("VACUUM INTO 'file:" + sqliteFilePath + "';").Error
	if err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}

	return nil
}
