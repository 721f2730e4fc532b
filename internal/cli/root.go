package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/wayfind/indoornav/internal/config"
)

var (
	// Global flags
	configDir  string
	logLevel   string
	jsonOutput bool

	// set by loadConfig
	configFound bool
)

// rootCmd is the root command for indoornav.
var rootCmd = &cobra.Command{
	Use:     "indoornav",
	Version: "dev",
	Short:   "Marker-aligned indoor route planner",
	Long: `indoornav registers a baked navigable surface to a physical marker and
keeps the shortest walkable route from the user to the selected destination
up to date.

Scenarios replay marker sightings, destination choices and user movement
against the configured surface; routes can also be queried one at a time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRunE: loadConfig,
}

func SetVersion(v string) {
	if v == "" {
		return
	}
	rootCmd.Version = v
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory containing "+config.FileName)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(destinationsCmd)
}

// loadConfig reads the config file. A missing file leaves the defaults in
// place; a malformed one is an error.
func loadConfig(cmd *cobra.Command, args []string) error {
	configFound = true
	if err := config.Load(configDir); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		configFound = false
	}
	if logLevel != "" {
		viper.Set("logLevel", logLevel)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
