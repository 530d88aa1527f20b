package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	rootCmd = &cobra.Command{
		Use:          "meshpage",
		Short:        "Topology page for wireless mesh nodes",
		SilenceUsage: true,
	}

	configFile = pflag.String("config", "", "set config file")
	logLevel   = pflag.String("log", "info", "set log level (debug, info, warn, error)")
	devMode    = pflag.Bool("devmode", false, "enable development mode")
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
