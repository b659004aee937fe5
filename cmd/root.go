package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool
	var configPath string

	cmd := &cobra.Command{
		Use:   "photogenseo",
		Short: "Batch product description workflow driven by product images",
		Long: `PhotoGenSeo drives the batch workflow for generating SEO product
descriptions from product images.

Operators enter up to ten EANs, curate the candidate images found for each
product, run generation and export the results as a spreadsheet-ready CSV.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			if verbose {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
			}
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "photogenseo.yaml", "Path to YAML config file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	// Add subcommands
	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newRunCmd(&configPath))

	return cmd
}
