package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/faultscope/faultscope/engine/faultcode"
	"github.com/faultscope/faultscope/engine/scraper"
)

// checkpointEvery is how many records are collected between progress saves.
const checkpointEvery = 10

func newHarvestCmd() *cobra.Command {
	var flags struct {
		out           string
		baseURL       string
		makes         []string
		delay         time.Duration
		genericLimit  int
		modelsPerMake int
		codesPerModel int
		workers       int
	}
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Crawl fault codes into a JSON harvest file",
		Long:  "harvest crawls generic and manufacturer-specific codes and writes them\nas a JSON array, saving progress as it goes. Feed the file to 'import'.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h := scraper.NewHarvester(scraper.HarvestConfig{
				BaseURL:       flags.baseURL,
				Delay:         flags.delay,
				GenericLimit:  flags.genericLimit,
				ModelsPerMake: flags.modelsPerMake,
				CodesPerModel: flags.codesPerModel,
				Workers:       flags.workers,
				Makes:         flags.makes,
				Logger:        slog.Default(),
			})

			var records []faultcode.Harvested
			var saveErr error
			runErr := h.Run(cmd.Context(), func(rec faultcode.Harvested) {
				records = append(records, rec)
				if len(records)%checkpointEvery == 0 && saveErr == nil {
					saveErr = writeHarvest(flags.out, records)
				}
			})
			if err := writeHarvest(flags.out, records); err != nil {
				return err
			}
			if saveErr != nil {
				return saveErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "harvested %d codes into %s\n", len(records), flags.out)
			return runErr
		},
	}
	f := cmd.Flags()
	f.StringVarP(&flags.out, "out", "o", "harvest.json", "Output file")
	f.StringVar(&flags.baseURL, "base-url", "", "Site to crawl (default https://faultcodes.co)")
	f.StringSliceVar(&flags.makes, "makes", nil, "Makes to crawl (default: all known manufacturers)")
	f.DurationVar(&flags.delay, "delay", 500*time.Millisecond, "Minimum spacing between requests")
	f.IntVar(&flags.genericLimit, "generic-limit", 100, "Generic codes to fetch")
	f.IntVar(&flags.modelsPerMake, "models", 3, "Models sampled per make")
	f.IntVar(&flags.codesPerModel, "codes", 5, "Codes sampled per model")
	f.IntVar(&flags.workers, "workers", 1, "Makes crawled concurrently")
	return cmd
}

func writeHarvest(path string, records []faultcode.Harvested) error {
	if records == nil {
		records = []faultcode.Harvested{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write harvest: %w", err)
	}
	return os.Rename(tmp, path)
}
