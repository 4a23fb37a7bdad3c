package main

import (
	"os"
	"strings"

	"github.com/peachmeow/peachmeow/pkg/build"
	"github.com/peachmeow/peachmeow/pkg/config"
	"github.com/peachmeow/peachmeow/pkg/drift"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Globals for Debug logging flag and version reporting.
var (
	debug   bool
	envFile string
	version string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "peachmeow",
		Short: "PeachMeow",
		Long:  "PeachMeow: patched app release pipeline",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if debug {
				log.SetLevel(log.DebugLevel)
			}
			return config.LoadEnvFile(envFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
		SilenceUsage: true,
		Version:      version,
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&debug, "debug", false, "enable debug level logging")
	flags.StringVar(&envFile, "env-file", "", "dotenv file loaded before reading the environment")
	flags.String(config.KeyConfigFile, "config.toml", "app configuration file")
	flags.String(config.KeyVersionsFile, "versions.json", "version ledger file")
	flags.String(config.KeyWorkDir, ".", "checkout the pipeline works in")
	for _, key := range []string{config.KeyConfigFile, config.KeyVersionsFile, config.KeyWorkDir} {
		if err := viper.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(build.NewBuildCmd())
	rootCmd.AddCommand(drift.NewResolveCmd())
	return rootCmd
}

func initConfig() {
	viper.SetEnvPrefix("peachmeow")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	config.BindEnv(viper.GetViper())
}

func main() {
	cobra.OnInitialize(initConfig)
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		log.Errorf("Error: %v", err)
		os.Exit(1)
	}
}
