package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/boardstore/internal/kv"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	DB         string // overrides the config file path
	Driver     string // overrides the config file driver

	// openStore opens the backend. Tests replace it to share one store
	// across commands.
	openStore func(driver, path string) (kv.Store, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// DefaultConfigPath is read when --config is not given.
const DefaultConfigPath = "~/.boards/config.yaml"

// NewRootCommand creates the root command for the boards CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{openStore: kv.Open})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boards",
		Short: "boards - nested lists in a local key-value store",
		Long: `Manage boards of groups of items stored in a local key-value database.

Records live under flat keys (index_<type>, <type>_<id>) in a sqlite,
pebble or in-memory backend. Boards can be exported and imported as JSON,
YAML or BSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Driver != "" && !kv.IsDriver(opts.Driver) {
				return fmt.Errorf("invalid driver %q: must be one of %v", opts.Driver, kv.Drivers())
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", DefaultConfigPath, "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "path to the data store (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "storage driver (memory|pebble|sqlite, overrides config)")

	cmd.AddCommand(NewBoardCommand(opts))
	cmd.AddCommand(NewGroupCommand(opts))
	cmd.AddCommand(NewItemCommand(opts))
	cmd.AddCommand(NewTreeCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewSingletonCommand(opts, "settings", "Show and change layout settings"))
	cmd.AddCommand(NewSingletonCommand(opts, "theme", "Show, import and change the colour theme"))
	cmd.AddCommand(NewStatsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
