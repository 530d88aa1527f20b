package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/spf13/cobra"

	"github.com/meshpage/meshpage/config"
	"github.com/meshpage/meshpage/filter"
	"github.com/meshpage/meshpage/source"
	"github.com/meshpage/meshpage/topology"
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVar(&renderSnapshot, "snapshot", "", "snapshot file (.json or .cbor), defaults to source.path of the config")
	renderCmd.Flags().StringVar(&renderFormat, "format", "text", "output format: html or text")
	renderCmd.Flags().StringVar(&renderFilter, "filter", "", "mark hosts and services matching the text")
}

var (
	renderCmd = &cobra.Command{
		Use:   "render",
		Short: "Render the topology page once",
		Args:  cobra.NoArgs,
		RunE:  render,
	}

	renderSnapshot string
	renderFormat   string
	renderFilter   string
)

func render(cmd *cobra.Command, args []string) error {
	// Use config, if given.
	var opts topology.Options
	if *configFile != "" {
		c, err := config.LoadConfig(*configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		opts = c.TopologyOptions()
		if renderSnapshot == "" {
			renderSnapshot = c.Source.Path
		}
	}
	if renderSnapshot == "" {
		return errors.New("no snapshot file given, use --snapshot")
	}

	// Load and render.
	snapshot, err := source.LoadFile(renderSnapshot)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	view := topology.Render(snapshot, opts)
	state := filter.New(view.Targets()).Match(renderFilter)

	switch renderFormat {
	case "html":
		err = view.WriteHTML(os.Stdout, state)
	case "text":
		err = view.WriteText(colorable.NewColorableStdout(), state, !color.NoColor)
	default:
		return fmt.Errorf("unknown format %q", renderFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	return nil
}
