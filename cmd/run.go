package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thomasbroadsword/PhotoGenSeo/internal/config"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/export"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/metrics"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/models"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/photogen"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/workflow"
)

func newRunCmd(configPath *string) *cobra.Command {
	var eansFile string
	var outputPath string
	var parquetPath string

	cmd := &cobra.Command{
		Use:   "run [eans...]",
		Short: "Run a headless batch with the default image selection",
		Long: `Runs one complete batch without the web interface.

Products are loaded for the given EANs, the first candidate images of each
product are selected automatically, generation runs sequentially and the
results land in a CSV file. Per-product generation failures become error
rows in the output instead of aborting the batch.`,
		Example: `  # Generate descriptions for two products
  photogenseo run 4006381333931 7622210449283

  # Read EANs from a file, one per line
  photogenseo run --eans-file batch.txt --output batch.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			input := strings.Join(args, "\n")
			if eansFile != "" {
				raw, err := os.ReadFile(eansFile)
				if err != nil {
					return fmt.Errorf("read eans file: %w", err)
				}
				input = input + "\n" + string(raw)
			}

			m := metrics.New()
			backend := photogen.NewClient(cfg.BackendURL, time.Duration(cfg.HTTPTimeout)).WithMetrics(m)
			session := workflow.NewSession("headless", backend, workflow.Options{
				SeedCount:         cfg.SeedSelection,
				GenerationTimeout: time.Duration(cfg.GenerationTimeout),
				Metrics:           m,
			})

			if err := session.Load(cmd.Context(), input); err != nil {
				return fmt.Errorf("failed to load products: %w", err)
			}

			observer := func(row models.ResultRow, completed, total int) {
				if row.Error != "" {
					slog.Warn("Product failed", "ean", row.EAN, "error", row.Error, "progress", fmt.Sprintf("%d/%d", completed, total))
					return
				}
				slog.Info("Product done", "ean", row.EAN, "progress", fmt.Sprintf("%d/%d", completed, total))
			}
			if err := session.Generate(cmd.Context(), observer); err != nil {
				return err
			}

			rows := session.Results()
			out, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			if err := export.WriteCSV(out, rows); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("close output file: %w", err)
			}
			slog.Info("Batch finished", "rows", len(rows), "output", outputPath)

			if parquetPath != "" {
				if err := export.WriteParquet(parquetPath, rows); err != nil {
					return err
				}
				slog.Info("Parquet archive written", "output", parquetPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&eansFile, "eans-file", "", "File with EANs, one per line")
	cmd.Flags().StringVarP(&outputPath, "output", "o", export.CSVFilename, "Path to output CSV file")
	cmd.Flags().StringVar(&parquetPath, "parquet", "", "Also write a parquet archive to this path")

	return cmd
}
