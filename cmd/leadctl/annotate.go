package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bloodgroupdb/leadctl/internal/annotate"
	"github.com/bloodgroupdb/leadctl/internal/datasource/dbsnp"
	"github.com/bloodgroupdb/leadctl/internal/datasource/gnomad"
	"github.com/bloodgroupdb/leadctl/internal/datasource/variantvalidator"
	"github.com/bloodgroupdb/leadctl/internal/lead"
)

// annotateOptions are the run-level flags shared by all annotation sources.
type annotateOptions struct {
	testMode      bool
	overwriteAll  bool
	clearNotFound bool
	limit         int
}

// validate rejects flag combinations before any network call happens.
func (o *annotateOptions) validate() error {
	if o.clearNotFound && !o.overwriteAll {
		return errors.New("--clear-not-found requires --overwrite-all")
	}
	return nil
}

func newAnnotateCmd() *cobra.Command {
	opts := &annotateOptions{}

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Annotate variant records from external services",
		Long: `Annotate fetches every variant from the Lead database, queries one
external service per subcommand, and PATCHes the resolved fields back.
By default only variants without existing annotation are touched.`,
		Example: `  # Dry run: show what the exon annotation would change
  leadctl annotate exons --test-mode

  # Fill in missing rsIDs
  leadctl annotate rsid

  # Re-annotate everything and clear stale gnomAD frequencies
  leadctl annotate gnomad --overwrite-all --clear-not-found`,
	}

	cmd.PersistentFlags().BoolVar(&opts.testMode, "test-mode", false,
		"Log intended changes without updating the database")
	cmd.PersistentFlags().BoolVar(&opts.overwriteAll, "overwrite-all", false,
		"Update all variants, even those with existing annotation")
	cmd.PersistentFlags().BoolVar(&opts.clearNotFound, "clear-not-found", false,
		"Clear existing annotation when the service reports not found (requires --overwrite-all)")
	cmd.PersistentFlags().IntVar(&opts.limit, "limit", 0,
		"Process only the first N variants (0 = all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "exons",
		Short: "Annotate exon/intron numbers from VariantValidator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := variantvalidator.New()
			src.SetLogger(logger)
			return runAnnotate(cmd, opts, src)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "gnomad",
		Short: "Annotate gnomAD v4 population frequencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := gnomad.New()
			src.SetLogger(logger)
			return runAnnotate(cmd, opts, src)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rsid",
		Short: "Annotate rsIDs from dbSNP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := dbsnp.New()
			src.SetLogger(logger)
			return runAnnotate(cmd, opts, src)
		},
	})

	return cmd
}

// runAnnotate is the shared driver: authenticate, fetch variants, run the
// reconciliation loop for one source, report the summary.
func runAnnotate(cmd *cobra.Command, opts *annotateOptions, src annotate.Source) error {
	if err := opts.validate(); err != nil {
		return err
	}

	url, email, password, err := credentials()
	if err != nil {
		return err
	}

	mode := "PRODUCTION MODE (will update database)"
	if opts.testMode {
		mode = "TEST MODE (no updates)"
	}
	logger.Info("starting annotation",
		zap.String("source", src.Name()),
		zap.String("mode", mode),
		zap.Bool("overwrite_all", opts.overwriteAll),
		zap.Bool("clear_not_found", opts.clearNotFound),
		zap.String("url", url),
	)

	client, err := lead.NewClient(url)
	if err != nil {
		return err
	}
	client.SetLogger(logger)

	ctx := cmd.Context()
	if err := client.Login(ctx, email, password); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	variants, err := client.ListVariants(ctx)
	if err != nil {
		return err
	}

	if opts.limit > 0 && opts.limit < len(variants) {
		logger.Info("limiting run", zap.Int("limit", opts.limit))
		variants = variants[:opts.limit]
	}

	runner := annotate.NewRunner(src, client, annotate.Policy{
		OverwriteAll:  opts.overwriteAll,
		ClearNotFound: opts.clearNotFound,
	})
	runner.SetDryRun(opts.testMode)
	runner.SetLogger(logger)

	counters, err := runner.Run(ctx, variants)
	if err != nil {
		return err
	}

	logger.Info(counters.Summary(opts.clearNotFound))
	fmt.Fprintln(cmd.OutOrStdout(), counters.Summary(opts.clearNotFound))

	if opts.testMode {
		logger.Info("test mode: no database updates were made")
	}
	return nil
}
