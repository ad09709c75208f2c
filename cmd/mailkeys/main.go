package main

import (
	"fmt"
	"os"

	"github.com/grumpyguvner/mailkeys/internal/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version   = "1.0.0"
	cfgFile   string
	verbosity int
)

var rootCmd = &cobra.Command{
	Use:   "mailkeys",
	Short: "Mail repository key index",
	Long: `mailkeys keeps the set of mail keys that belong to each mail repository
in Cassandra, PostgreSQL or an embedded Pebble store, and serves it over an HTTP API.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./mailkeys.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "verbosity (repeat for debug logs)")

	rootCmd.AddCommand(commands.NewServerCommand())
	rootCmd.AddCommand(commands.NewKeysCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewConfigCommand())
}

func initConfig() {
	if cfgFile != "" {
		viper.Set("config", cfgFile)
	}

	if verbosity >= 2 && os.Getenv("MAILKEYS_LOG_LEVEL") == "" {
		_ = os.Setenv("MAILKEYS_LOG_LEVEL", "debug")
	}

	if verbosity > 0 && cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", cfgFile)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
