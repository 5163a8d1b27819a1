package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/leaflet/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "leaflet",
	Short: "PDF segmentation pipeline producing retrieval-ready chunks",
	Long: `Leaflet turns PDFs into ordered, retrieval-ready text chunks that
carry spatial (bounding-box) and structural (section/list/table)
provenance.

The pipeline includes:
  - Per-page visual complexity analysis and strategy selection
  - Native text extraction with an OCR/layout fallback
  - Section-title inheritance and structural enrichment
  - VLM captioning for tables and figures
  - Size-normalized chunk construction with full provenance`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.leaflet/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "leaflet home directory (default: ~/.leaflet)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	rootCmd.AddCommand(versionCmd)
}
