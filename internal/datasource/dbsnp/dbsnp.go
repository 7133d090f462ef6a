// Package dbsnp annotates variants with dbSNP rsIDs via the NCBI Variation
// Services SPDI endpoint, using GRCh38 coordinates.
package dbsnp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bloodgroupdb/leadctl/internal/annotate"
	"github.com/bloodgroupdb/leadctl/internal/httpx"
	"github.com/bloodgroupdb/leadctl/internal/lead"
)

const (
	defaultBaseURL = "https://api.ncbi.nlm.nih.gov"

	// NCBI allows 3 requests per second without an API key; 2/s stays safe.
	queryInterval = 500 * time.Millisecond

	// Long alleles are judged unsuitable for the identifier service.
	maxAlleleLength = 50
)

// grch38Accessions maps chromosome labels to their GRCh38 RefSeq accessions.
// The mitochondrial genome is reachable as both MT and M.
var grch38Accessions = map[string]string{
	"1": "NC_000001.11", "2": "NC_000002.12", "3": "NC_000003.12",
	"4": "NC_000004.12", "5": "NC_000005.10", "6": "NC_000006.12",
	"7": "NC_000007.14", "8": "NC_000008.11", "9": "NC_000009.12",
	"10": "NC_000010.11", "11": "NC_000011.10", "12": "NC_000012.12",
	"13": "NC_000013.11", "14": "NC_000014.9", "15": "NC_000015.10",
	"16": "NC_000016.10", "17": "NC_000017.11", "18": "NC_000018.10",
	"19": "NC_000019.10", "20": "NC_000020.11", "21": "NC_000021.9",
	"22": "NC_000022.11", "X": "NC_000023.11", "Y": "NC_000024.10",
	"MT": "NC_012920.1", "M": "NC_012920.1",
}

// Source implements annotate.Source for NCBI Variation Services.
type Source struct {
	baseURL string
	http    *httpx.Client
	logger  *zap.Logger
}

// New creates a dbSNP source with the production endpoint.
func New() *Source {
	return &Source{
		baseURL: defaultBaseURL,
		http:    httpx.New(nil),
		logger:  zap.NewNop(),
	}
}

// SetBaseURL overrides the service endpoint (used by tests).
func (s *Source) SetBaseURL(u string) { s.baseURL = u }

// SetHTTPClient overrides the retrying HTTP client.
func (s *Source) SetHTTPClient(c *httpx.Client) { s.http = c }

// SetLogger sets the logger for lookup diagnostics.
func (s *Source) SetLogger(l *zap.Logger) {
	s.logger = l
	s.http.SetLogger(l)
}

func (s *Source) Name() string { return "dbsnp" }

func (s *Source) Fields() []string { return []string{lead.FieldRsID} }

func (s *Source) Interval() time.Duration { return queryInterval }

// Skip rejects variants without coordinates, identical ref/alt alleles, and
// alleles too long for the identifier service.
func (s *Source) Skip(v *lead.Variant) (string, bool) {
	if !v.HasCoordinates() {
		return "missing GRCh38 coordinates", true
	}
	ref, alt := lead.Str(v.GRCh38Ref), lead.Str(v.GRCh38Alt)
	if len(ref) > maxAlleleLength || len(alt) > maxAlleleLength {
		return fmt.Sprintf("alleles too long (ref: %d, alt: %d)", len(ref), len(alt)), true
	}
	if ref == alt {
		return fmt.Sprintf("ref and alt are identical (%s)", ref), true
	}
	return "", false
}

// HasAnnotation reports whether the rsID column already holds a value.
func (s *Source) HasAnnotation(v *lead.Variant) bool {
	return v.HasRsID()
}

// Query resolves the variant's SPDI form to an rsID. An unrecognized
// chromosome label is a confirmed miss without any network call.
func (s *Source) Query(ctx context.Context, v *lead.Variant) annotate.Outcome {
	accession, ok := grch38Accessions[NormalizeChrom(lead.Str(v.GRCh38Chr))]
	if !ok {
		s.logger.Warn("unknown chromosome", zap.String("chromosome", lead.Str(v.GRCh38Chr)))
		return annotate.NotFound()
	}

	// SPDI positions are 0-based; database positions are 1-based.
	spdiPos := *v.GRCh38Pos - 1

	spdi := fmt.Sprintf("%s:%d:%s:%s",
		accession, spdiPos, lead.Str(v.GRCh38Ref), lead.Str(v.GRCh38Alt))
	lookupURL := fmt.Sprintf("%s/variation/v0/spdi/%s/rsids", s.baseURL, url.PathEscape(spdi))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return annotate.Failed(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return annotate.Failed(fmt.Errorf("dbsnp lookup %s: %w", spdi, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return annotate.NotFound()
	}

	var body struct {
		Data struct {
			RsIDs []int64 `json:"rsids"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return annotate.Failed(fmt.Errorf("decode dbsnp response: %w", err))
	}

	if len(body.Data.RsIDs) == 0 {
		return annotate.NotFound()
	}

	return annotate.Found(map[string]any{
		lead.FieldRsID: fmt.Sprintf("rs%d", body.Data.RsIDs[0]),
	})
}

// NormalizeChrom strips a leading "chr" prefix in any case, leaving the
// bare chromosome label used by the accession table.
func NormalizeChrom(chrom string) string {
	if len(chrom) > 3 && strings.EqualFold(chrom[:3], "chr") {
		return chrom[3:]
	}
	return chrom
}
