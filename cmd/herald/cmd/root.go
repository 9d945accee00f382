// Package cmd implements the herald CLI commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "herald",
		Short: "Uthgard Herald alerting pipeline",
		Long: "herald watches the Uthgard Herald warmap for keep captures and\n" +
			"sieges, tracks player realm-point gains, and delivers de-duplicated\n" +
			"alerts to webhook channels.",
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "herald.yaml", "config file path")
}

func initConfig() {
	viper.SetEnvPrefix("HERALD")
	viper.AutomaticEnv()
}
