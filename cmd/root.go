package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/parnexcodes/ddl/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile      string
	verbose      bool
	concurrency  int
	outputFormat string

	rootCmd = &cobra.Command{
		Use:   "ddl",
		Short: "Upload files and folders to direct download link hosts",
		Long: `ddl uploads local files and folders to direct download link (DDL)
hosting services such as GoFile and StreamTape. Providers are tried in the
configured order and the first one that returns a link wins.`,
		SilenceUsage: true,
	}
)

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().IntVarP(&concurrency, "concurrency", "c", 2, "maximum number of parallel upload jobs")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json)")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))

	// Add subcommands
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	viper.SetEnvPrefix("DDL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile == "" {
		if verbose {
			logging.Init(verbose, os.Stderr)
			logging.ConfigLoad("CLI flags only", nil)
		}
		return
	}

	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		os.Exit(1)
	}
	if verbose {
		logging.Init(verbose, os.Stderr)
		logging.ConfigLoad(viper.ConfigFileUsed(), nil)
	}
}
