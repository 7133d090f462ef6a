// Package export flattens the Lead database's allele records into one
// spreadsheet per blood group system, in the layout circulated to ISBT.
package export

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bloodgroupdb/leadctl/internal/lead"
)

// AlleleReader is the slice of the Lead client the exporter needs.
type AlleleReader interface {
	ListSystems(ctx context.Context) ([]lead.System, error)
	SearchAlleles(ctx context.Context, systemSymbol string) ([]lead.AlleleSummary, error)
	GetAllele(ctx context.Context, id int) (*lead.Allele, error)
}

// Columns of the per-system report, in sheet order.
var Columns = []string{
	"database_stable_id",
	"isbt_phenotype",
	"isbt_allele",
	"alternate_names",
	"reference_allele",
	"protein_variant",
	"genomic_variant",
	"rsid",
	"genbanks",
	"publications",
	"sv_allele",
	"null_allele",
	"mod_allele",
	"partial_allele",
	"weak_allele",
	"el_allele",
	"notes",
	"comment",
}

// Exporter writes one .xlsx workbook per blood group system. Systems are
// exported concurrently; workers share no mutable state because each
// writes a distinct file.
type Exporter struct {
	client    AlleleReader
	outputDir string
	threads   int
	logger    *zap.Logger
}

// NewExporter creates an exporter writing into outputDir with the given
// worker count (minimum one).
func NewExporter(client AlleleReader, outputDir string, threads int) *Exporter {
	if threads < 1 {
		threads = 1
	}
	return &Exporter{
		client:    client,
		outputDir: outputDir,
		threads:   threads,
		logger:    zap.NewNop(),
	}
}

// SetLogger sets the logger for progress messages.
func (e *Exporter) SetLogger(l *zap.Logger) {
	e.logger = l
}

// Run exports every system. Per-system failures are logged and do not stop
// the other workers; only the initial system listing is fatal.
func (e *Exporter) Run(ctx context.Context) error {
	systems, err := e.client.ListSystems(ctx)
	if err != nil {
		return fmt.Errorf("list systems: %w", err)
	}
	e.logger.Info("exporting systems", zap.Int("count", len(systems)))

	symbols := uniqueSymbols(systems)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.threads)
	for _, symbol := range symbols {
		g.Go(func() error {
			if err := e.exportSystem(ctx, symbol); err != nil {
				e.logger.Error("system export failed",
					zap.String("system", symbol), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *Exporter) exportSystem(ctx context.Context, symbol string) error {
	summaries, err := e.client.SearchAlleles(ctx, symbol)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		e.logger.Info("no alleles for system", zap.String("system", symbol))
		return nil
	}

	e.logger.Info("fetching alleles",
		zap.String("system", symbol), zap.Int("count", len(summaries)))

	rows := make([][]string, 0, len(summaries))
	for i, summary := range summaries {
		allele, err := e.client.GetAllele(ctx, summary.ID)
		if err != nil {
			return fmt.Errorf("allele %d: %w", summary.ID, err)
		}
		e.logger.Debug("fetched allele",
			zap.String("system", symbol),
			zap.String("progress", fmt.Sprintf("%d/%d", i+1, len(summaries))))
		rows = append(rows, FlattenAllele(allele))
	}

	path := fmt.Sprintf("%s/%s.xlsx", e.outputDir, symbol)
	if err := WriteWorkbook(path, Columns, rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	e.logger.Info("wrote workbook", zap.String("path", path))
	return nil
}

// FlattenAllele renders one allele as a report row in Columns order.
// Multi-valued relations are newline-joined; empty values become "-".
func FlattenAllele(a *lead.Allele) []string {
	var hgvsProtein, hgvsGenomic, rsids []string
	for _, v := range a.Variants {
		hgvsProtein = append(hgvsProtein, dashIfEmpty(lead.Str(v.HGVSPredictedProtein)))
		hgvsGenomic = append(hgvsGenomic, dashIfEmpty(lead.Str(v.HGVSGenomicGRCh38)))
		rsids = append(rsids, dashIfEmpty(lead.Str(v.RsID)))
	}

	return []string{
		fmt.Sprint(a.ID),
		lead.Str(a.ISBTPhenotype),
		lead.Str(a.ISBTAllele),
		lead.Str(a.AlternateNames),
		boolFlag(a.ReferenceAllele),
		joinOrDash(hgvsProtein),
		joinOrDash(hgvsGenomic),
		joinOrDash(rsids),
		joinOrDash(flattenGenbanks(a.Genbanks)),
		joinOrDash(flattenPublications(a.Publications)),
		boolFlag(a.SVAllele),
		boolFlag(a.NullAllele),
		boolFlag(a.ModAllele),
		boolFlag(a.PartialAllele),
		boolFlag(a.WeakAllele),
		boolFlag(a.ELAllele),
		lead.Str(a.Notes),
		lead.Str(a.Comment),
	}
}

func flattenGenbanks(genbanks []lead.Genbank) []string {
	var out []string
	for _, gb := range genbanks {
		out = append(out, dashIfEmpty(lead.Str(gb.Accession)))
	}
	return out
}

// flattenPublications renders PubMed references as "PMID:<id>" and
// everything else as its citation text.
func flattenPublications(pubs []lead.Publication) []string {
	var out []string
	for _, pub := range pubs {
		if lead.Str(pub.Type) == "pmid" {
			out = append(out, "PMID:"+dashIfEmpty(lead.Str(pub.Identifier)))
			continue
		}
		out = append(out, dashIfEmpty(lead.Str(pub.Citation)))
	}
	return out
}

// boolFlag renders an optional boolean as "1"/"0"; absent counts as false.
func boolFlag(b *bool) string {
	if b != nil && *b {
		return "1"
	}
	return "0"
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, "\n")
}

func uniqueSymbols(systems []lead.System) []string {
	seen := make(map[string]bool, len(systems))
	var symbols []string
	for _, s := range systems {
		if !seen[s.Symbol] {
			seen[s.Symbol] = true
			symbols = append(symbols, s.Symbol)
		}
	}
	return symbols
}
