package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "indoornav.cfg.json"

// DestinationConfig is one configured point of interest.
type DestinationConfig struct {
	Name     string    `json:"name" mapstructure:"name"`
	Position []float64 `json:"position" mapstructure:"position"`
}

// SurfaceConfig holds the baked navigable surface settings
type SurfaceConfig struct {
	File         string  `json:"file" mapstructure:"file"`
	SnapDistance float64 `json:"snapDistance" mapstructure:"snapDistance"`
}

// NavigatorConfig holds alignment and planning behaviour switches
type NavigatorConfig struct {
	ReleasePrevious bool `json:"releasePrevious" mapstructure:"releasePrevious"`
	SkipUnchanged   bool `json:"skipUnchanged" mapstructure:"skipUnchanged"`
	BufferSize      int  `json:"bufferSize" mapstructure:"bufferSize"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// StorageConfig holds route history storage settings
type StorageConfig struct {
	Type     string         `json:"type" mapstructure:"type"`
	Memory   MemoryConfig   `json:"memory" mapstructure:"memory"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `json:"db" mapstructure:"db"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	ExportInterval time.Duration `json:"exportInterval" mapstructure:"exportInterval"`
	MetricsFile    string        `json:"metricsFile" mapstructure:"metricsFile"`
	LogsFile       string        `json:"logsFile" mapstructure:"logsFile"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// MonitorConfig holds status file settings
type MonitorConfig struct {
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
}

// SetDefaults registers default values for every known key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./navlogs")
	viper.SetDefault("site", "default")

	viper.SetDefault("surface.file", "surface.json")
	viper.SetDefault("surface.snapDistance", 1.5)

	viper.SetDefault("destinations", []DestinationConfig{})

	viper.SetDefault("alignment.releasePrevious", false)
	viper.SetDefault("planner.skipUnchanged", false)
	viper.SetDefault("dispatcher.bufferSize", 256)

	viper.SetDefault("storage.type", "none")
	viper.SetDefault("storage.memory.outputDir", "./routes")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "1m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "indoornav")

	viper.SetDefault("monitor.statusFile", "")
	viper.SetDefault("monitor.interval", "1s")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "indoornav")
	viper.SetDefault("otel.exportInterval", "10s")
	viper.SetDefault("otel.metricsFile", "")
	viper.SetDefault("otel.logsFile", "")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", false)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDestinations returns the configured destination list in file order.
func GetDestinations() ([]DestinationConfig, error) {
	var dests []DestinationConfig
	if err := viper.UnmarshalKey("destinations", &dests); err != nil {
		return nil, fmt.Errorf("error decoding destinations: %w", err)
	}
	return dests, nil
}

// GetSurfaceConfig returns the navigable surface settings.
func GetSurfaceConfig() SurfaceConfig {
	return SurfaceConfig{
		File:         viper.GetString("surface.file"),
		SnapDistance: viper.GetFloat64("surface.snapDistance"),
	}
}

// GetNavigatorConfig returns alignment, planner and dispatcher settings.
func GetNavigatorConfig() NavigatorConfig {
	return NavigatorConfig{
		ReleasePrevious: viper.GetBool("alignment.releasePrevious"),
		SkipUnchanged:   viper.GetBool("planner.skipUnchanged"),
		BufferSize:      viper.GetInt("dispatcher.bufferSize"),
	}
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		ExportInterval: viper.GetDuration("otel.exportInterval"),
		MetricsFile:    viper.GetString("otel.metricsFile"),
		LogsFile:       viper.GetString("otel.logsFile"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		StatusFile: viper.GetString("monitor.statusFile"),
		Interval:   viper.GetDuration("monitor.interval"),
	}
}
