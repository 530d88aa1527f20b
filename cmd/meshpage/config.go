package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/meshpage/meshpage/config"
	"github.com/meshpage/meshpage/m"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(generateCmd)
	configCmd.AddCommand(checkCmd)

	generateCmd.Flags().StringVar(&generateSourcePath, "source-path", "", "snapshot file to load the mesh from")
	generateCmd.Flags().StringVar(&generateSourceURL, "source-url", "", "URL to load the mesh from")
}

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the config",
	}

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Print a default config",
		Args:  cobra.NoArgs,
		RunE:  generate,
	}
	generateSourcePath string
	generateSourceURL  string

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Check the config given with --config",
		Args:  cobra.NoArgs,
		RunE:  check,
	}
)

func generate(cmd *cobra.Command, args []string) error {
	c := makeDefaultConfig(generateSourcePath, generateSourceURL)

	// Check before output.
	if _, err := c.Parse(); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	// Output default config.
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Println(string(data)) // CLI output.
	return nil
}

func makeDefaultConfig(sourcePath, sourceURL string) config.Store {
	// Find state path.
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.TempDir()
	}
	_ = os.Mkdir(filepath.Join(homeDir, ".meshpage"), 0o0750)
	statePath := filepath.Join(homeDir, ".meshpage", "state.json")

	// Default to the usual location on mesh nodes.
	if sourcePath == "" && sourceURL == "" {
		sourceURL = "http://localnode." + m.DefaultLocalDomain + "/cgi-bin/sysinfo.json?mesh=1"
	}

	return config.Store{
		System: config.System{
			APIListen: config.DefaultAPIListen.String(),
			StatePath: statePath,
		},
		Source: config.Source{
			Path:     sourcePath,
			URL:      sourceURL,
			Interval: config.DefaultSourceInterval.String(),
		},
		Page: config.Page{
			Thresholds:  m.DefaultThresholds,
			LocalDomain: m.DefaultLocalDomain,
		},
	}
}

func check(cmd *cobra.Command, args []string) error {
	c, err := config.LoadConfig(*configFile)
	if err != nil {
		return err
	}
	fmt.Printf("config ok, serving %s on %s\n", c.Source.Path+c.Source.URL, c.APIListen) // CLI output.
	return nil
}
