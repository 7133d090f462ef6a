// Package variantvalidator annotates variants with exon and intron numbers
// from the VariantValidator REST API, using the HGVS transcript notation.
package variantvalidator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bloodgroupdb/leadctl/internal/annotate"
	"github.com/bloodgroupdb/leadctl/internal/httpx"
	"github.com/bloodgroupdb/leadctl/internal/lead"
)

const (
	defaultBaseURL = "https://rest.variantvalidator.org"

	// VariantValidator recommends at most 4 requests per second.
	queryInterval = 250 * time.Millisecond
)

// Source implements annotate.Source for VariantValidator.
type Source struct {
	baseURL string
	http    *httpx.Client
	logger  *zap.Logger
}

// New creates a VariantValidator source with the production endpoint.
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

func (s *Source) Name() string { return "variantvalidator" }

func (s *Source) Fields() []string {
	return []string{lead.FieldExon, lead.FieldIntron}
}

func (s *Source) Interval() time.Duration { return queryInterval }

// Skip rejects variants with no HGVS transcript notation.
func (s *Source) Skip(v *lead.Variant) (string, bool) {
	if lead.Str(v.HGVSTranscript) == "" {
		return "no HGVS transcript", true
	}
	return "", false
}

// HasAnnotation reports whether exon or intron already holds a value.
// The two are independent: either one counts as existing annotation.
func (s *Source) HasAnnotation(v *lead.Variant) bool {
	return v.HasExonIntron()
}

// exonicPosition is one entry of the variant_exonic_positions mapping.
// Boundaries of zero are treated as missing: exon and intron numbering
// starts at one in this domain.
type exonicPosition struct {
	StartExon   int `json:"start_exon"`
	EndExon     int `json:"end_exon"`
	StartIntron int `json:"start_intron"`
	EndIntron   int `json:"end_intron"`
}

// Query resolves the HGVS notation against the GRCh38 assembly and reduces
// the response to exon/intron range strings.
func (s *Source) Query(ctx context.Context, v *lead.Variant) annotate.Outcome {
	hgvs := lead.Str(v.HGVSTranscript)
	accession, _, _ := strings.Cut(hgvs, ":")

	lookupURL := fmt.Sprintf("%s/VariantValidator/variantvalidator/GRCh38/%s/%s",
		s.baseURL, url.PathEscape(hgvs), url.PathEscape(accession))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return annotate.Failed(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return annotate.Failed(fmt.Errorf("variantvalidator lookup: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return annotate.NotFound()
	}

	var body map[string]struct {
		VariantExonicPositions map[string]exonicPosition `json:"variant_exonic_positions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return annotate.Failed(fmt.Errorf("decode variantvalidator response: %w", err))
	}

	// The response is keyed by the submitted HGVS string; anything else
	// (warnings, intergenic records) means the variant was not resolved.
	entry, ok := body[hgvs]
	if !ok {
		s.logger.Debug("hgvs not resolved by variantvalidator", zap.String("hgvs", hgvs))
		return annotate.NotFound()
	}

	pos, ok := bestPositions(entry.VariantExonicPositions)
	if !ok {
		s.logger.Debug("no genomic context for hgvs", zap.String("hgvs", hgvs))
		return annotate.NotFound()
	}

	fields := make(map[string]any, 2)
	if exon := renderRange(pos.StartExon, pos.EndExon); exon != "" {
		fields[lead.FieldExon] = exon
	}
	if intron := renderRange(pos.StartIntron, pos.EndIntron); intron != "" {
		fields[lead.FieldIntron] = intron
	}
	return annotate.Found(fields)
}

// bestPositions selects the genomic context keyed by the highest-versioned
// NC_ reference accession. Lower-version builds are discarded even when the
// top version carries no exon data for the transcript.
func bestPositions(positions map[string]exonicPosition) (exonicPosition, bool) {
	var best exonicPosition
	latest := 0

	for key, pos := range positions {
		if !strings.HasPrefix(key, "NC") {
			continue
		}
		_, suffix, ok := strings.Cut(key, ".")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		if version > latest {
			latest = version
			best = pos
		}
	}

	return best, latest > 0
}

// renderRange formats an exon or intron span: "n" when the variant sits in
// a single exon/intron, "start-end" when it spans several, "" when either
// boundary is missing.
func renderRange(start, end int) string {
	if start == 0 || end == 0 {
		return ""
	}
	if start == end {
		return strconv.Itoa(start)
	}
	return fmt.Sprintf("%d-%d", start, end)
}
