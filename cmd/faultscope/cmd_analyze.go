package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/faultscope/faultscope/engine/analyze"
	"github.com/faultscope/faultscope/engine/faultcode"
	"github.com/faultscope/faultscope/engine/generative"
	"github.com/faultscope/faultscope/engine/scraper"
	"github.com/faultscope/faultscope/pkg/ollama"
)

func newAnalyzeCmd() *cobra.Command {
	var flags struct {
		equipment string
		table     string
		offline   bool
		searchURL string
		model     string
		baseURL   string
		ollamaURL string
		delay     time.Duration
	}
	cmd := &cobra.Command{
		Use:   "analyze <code>",
		Short: "Run the full resolution chain for one code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := faultcode.Load(flags.table)
			if err != nil {
				return err
			}
			cfg := analyze.Config{Table: table, Delay: flags.delay, Logger: slog.Default()}
			if !flags.offline {
				cfg.Scraper = scraper.New(scraper.Config{
					Search: scraper.SearchConfig{URL: flags.searchURL},
					Logger: slog.Default(),
				})
				if key := os.Getenv("OPENAI_API_KEY"); key != "" {
					cfg.Provider = generative.NewOpenAIProvider(
						generative.WithAPIKey(key),
						generative.WithModel(flags.model),
						generative.WithBaseURL(flags.baseURL),
						generative.WithTimeout(30*time.Second),
					)
				} else if flags.ollamaURL != "" {
					cfg.Provider = ollama.NewClient(flags.ollamaURL, os.Getenv("OLLAMA_MODEL"), 60*time.Second)
				}
			}

			a, err := analyze.NewService(cfg).Analyze(cmd.Context(), flags.equipment, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, a.Text)
			fmt.Fprintf(cmd.ErrOrStderr(), "answered by: %s\n", a.Stage)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&flags.equipment, "equipment", "e", "", "Equipment description (required)")
	f.StringVar(&flags.table, "table", "", "YAML table overlaid on the built-in codes")
	f.BoolVar(&flags.offline, "offline", false, "Skip scraping and the generative model")
	f.StringVar(&flags.searchURL, "search-url", "", "Search page format string with one %s")
	f.StringVar(&flags.model, "model", generative.DefaultModel, "Chat model used when OPENAI_API_KEY is set")
	f.StringVar(&flags.baseURL, "openai-base-url", "", "OpenAI-compatible endpoint")
	f.StringVar(&flags.ollamaURL, "ollama-url", os.Getenv("OLLAMA_URL"), "Local Ollama server, used when no OpenAI key is set")
	f.DurationVar(&flags.delay, "delay", 0, "Pause after a table miss")
	_ = cmd.MarkFlagRequired("equipment")
	return cmd
}
