// Item store command line and gRPC server
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nainya/itemstore/internal/config"
	"github.com/nainya/itemstore/internal/logger"
	"github.com/nainya/itemstore/pkg/hashing"
	"github.com/nainya/itemstore/pkg/index"
	"github.com/nainya/itemstore/pkg/persist"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "itemstore",
	Short: "Attribute bag store with comparator-based identity",
	Long: `itemstore - generate, store and compare attribute bags.

Items are produced from CSV, text files or URLs, qualified with a cache
name and identifier, and written one record per file. Two items are the
same entity when their comparator aspects agree.

Examples:
  itemstore ingest people.csv          # Generate and store items
  itemstore dictionary                 # List every field in the corpus
  itemstore match probe.csv            # Find stored items equal to a probe
  itemstore show <identifier>          # Print one stored item
  itemstore serve                      # Start the gRPC server`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (yaml, toml or json)")
	rootCmd.PersistentFlags().String("location", "", "Corpus directory (overrides store.location)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("pretty", false, "Human-readable log output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(dictionaryCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

// app carries what every command needs
type app struct {
	cfg *config.Config
	log *logger.Logger
}

func newApp(cmd *cobra.Command) (*app, error) {
	v, err := config.NewViper(configPath)
	if err != nil {
		return nil, err
	}
	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	logger.InitGlobalLogger(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})
	return &app{cfg: cfg, log: logger.GetGlobalLogger()}, nil
}

// bindFlags lets explicitly set flags win over file and environment values
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	bindings := map[string]string{
		"location":  "store.location",
		"log-level": "log.level",
		"pretty":    "log.pretty",
	}
	for flag, key := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

func (a *app) openStore() (*persist.FilePersister, error) {
	return persist.Open(a.cfg.Store.Location, persist.WithLogger(a.log.Component("persist")))
}

// openIndex returns nil when no index path is configured
func (a *app) openIndex(ctx context.Context) (*index.SQLiteConnector, error) {
	if a.cfg.Index.Path == "" {
		return nil, nil
	}
	return index.Open(ctx, a.cfg.Index.Path, index.WithLogger(a.log.Component("index")))
}

func (a *app) strategy() (hashing.Strategy, error) {
	return hashing.Lookup(a.cfg.Hashing.Strategy)
}
