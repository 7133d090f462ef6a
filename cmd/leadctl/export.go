package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bloodgroupdb/leadctl/internal/export"
	"github.com/bloodgroupdb/leadctl/internal/lead"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export Lead database records to report files",
	}

	var (
		outputDir string
		threads   int
	)

	isbt := &cobra.Command{
		Use:   "isbt",
		Short: "Export per-system allele tables as .xlsx workbooks",
		Long: `Export fetches every blood group system and writes one spreadsheet per
system containing its flattened allele records, in the layout circulated
to the ISBT working party.`,
		Example: `  leadctl export isbt --output ./reports
  leadctl export isbt --output ./reports --threads 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, email, password, err := credentials()
			if err != nil {
				return err
			}

			absDir, err := filepath.Abs(outputDir)
			if err != nil {
				return fmt.Errorf("resolve output directory: %w", err)
			}
			if err := os.MkdirAll(absDir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			client, err := lead.NewClient(url)
			if err != nil {
				return err
			}
			client.SetLogger(logger)

			ctx := cmd.Context()
			if err := client.Login(ctx, email, password); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}

			exporter := export.NewExporter(client, absDir, threads)
			exporter.SetLogger(logger)
			return exporter.Run(ctx)
		},
	}

	isbt.Flags().StringVar(&outputDir, "output", "", "Output directory for the workbooks")
	isbt.Flags().IntVar(&threads, "threads", 1, "Number of systems to export concurrently")
	_ = isbt.MarkFlagRequired("output")

	cmd.AddCommand(isbt)
	return cmd
}
