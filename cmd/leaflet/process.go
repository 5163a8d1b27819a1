package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v2"

	"github.com/jackzampolin/leaflet/internal/config"
	"github.com/jackzampolin/leaflet/internal/home"
	"github.com/jackzampolin/leaflet/internal/pipeline"
	"github.com/jackzampolin/leaflet/internal/providers"
	"github.com/jackzampolin/leaflet/internal/store"
	"github.com/jackzampolin/leaflet/internal/types"
)

// resultSummary is the per-document view printed after a run. The full
// manifest lives in the run directory; this is the operator-facing cut.
type resultSummary struct {
	File     string `json:"file" yaml:"file"`
	RunID    string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Status   string `json:"status" yaml:"status"`
	Pages    int    `json:"pages" yaml:"pages"`
	Chunks   int    `json:"chunks" yaml:"chunks"`
	Warnings int    `json:"warnings" yaml:"warnings"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

var processCmd = &cobra.Command{
	Use:   "process [pdf...]",
	Short: "Segment PDFs into retrieval-ready chunks",
	Long: `Process one or more PDF documents through the segmentation pipeline.

Each document gets its own run directory under the leaflet home with
chunks.jsonl, page captures, and a result.json manifest.

Examples:
  leaflet process manual.pdf
  leaflet process a.pdf b.pdf c.pdf
  leaflet process --output json manual.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		manager, err := config.NewManager(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		registry := providers.NewRegistry()
		registry.SetLogger(logger)
		if err := configureProviders(registry, manager.Get()); err != nil {
			return err
		}

		// Reloads swap providers between documents; a document in flight
		// keeps the config it started with.
		manager.OnChange(func(cfg *config.Config) {
			if err := configureProviders(registry, cfg); err != nil {
				logger.Error("config reload rejected", "error", err)
			}
		})
		manager.WatchConfig()

		processor := pipeline.New(manager, registry, store.New(h), logger)
		results := processor.Batch(ctx, args)

		summaries := make([]resultSummary, 0, len(results))
		failed := 0
		for _, r := range results {
			if r.Status == types.StatusFailed {
				failed++
			}
			summaries = append(summaries, resultSummary{
				File:     r.SourceFilename,
				RunID:    r.RunID,
				Status:   string(r.Status),
				Pages:    r.PageCount,
				Chunks:   len(r.Chunks),
				Warnings: len(r.Warnings),
				Error:    r.Error,
			})
		}

		if err := printOutput(summaries); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d documents failed", failed, len(results))
		}
		return nil
	},
}

// configureProviders builds and installs capability clients from config.
func configureProviders(registry *providers.Registry, cfg *config.Config) error {
	ocr, err := providers.BuildOCR(providers.ProviderSettings{
		Type:       cfg.Providers.OCR.Type,
		Model:      cfg.Providers.OCR.Model,
		APIKey:     config.ResolveEnvVars(cfg.Providers.OCR.APIKey),
		RateLimit:  cfg.Providers.OCR.RateLimit,
		Timeout:    cfg.OCRTimeout(),
		MaxRetries: cfg.Providers.OCR.MaxRetries,
		Enabled:    cfg.Providers.OCR.Enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to build OCR provider: %w", err)
	}
	registry.SetOCR(ocr)

	captioner, err := providers.BuildCaptioner(providers.ProviderSettings{
		Type:       cfg.Providers.Caption.Type,
		Model:      cfg.Providers.Caption.Model,
		APIKey:     config.ResolveEnvVars(cfg.Providers.Caption.APIKey),
		RateLimit:  cfg.Providers.Caption.RateLimit,
		Timeout:    cfg.CaptionTimeout(),
		MaxRetries: cfg.Providers.Caption.MaxRetries,
		Enabled:    cfg.Providers.Caption.Enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to build caption provider: %w", err)
	}
	registry.SetCaptioner(captioner)
	return nil
}

// printOutput renders v to stdout in the selected format.
func printOutput(v interface{}) error {
	switch outputFormat {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	default:
		return fmt.Errorf("unknown output format %q (valid: yaml, json)", outputFormat)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(processCmd)
}
