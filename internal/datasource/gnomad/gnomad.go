// Package gnomad annotates variants with gnomAD v4 minor allele frequencies
// via the gnomAD GraphQL API, using GRCh38 coordinates.
package gnomad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bloodgroupdb/leadctl/internal/annotate"
	"github.com/bloodgroupdb/leadctl/internal/httpx"
	"github.com/bloodgroupdb/leadctl/internal/lead"
)

const (
	defaultBaseURL = "https://gnomad.broadinstitute.org/api"
	datasetID      = "gnomad_r4"

	// gnomAD allows 10 requests per 60 seconds; 6.5s stays under the cap.
	queryInterval = 6500 * time.Millisecond

	// Alleles above this length are rejected upstream with a transport-level
	// 413 that must not be retried, so they are skipped before querying.
	maxAlleleLength = 1000
)

// variantQuery requests only the superpopulation counts to keep the
// response size manageable.
const variantQuery = `
query GnomadVariant($variantId: String!, $datasetId: DatasetId!) {
  variant(variantId: $variantId, dataset: $datasetId) {
    variant_id
    genome {
      af
      populations {
        id
        ac
        an
      }
    }
  }
}
`

// Source implements annotate.Source for the gnomAD v4 GraphQL API.
type Source struct {
	baseURL string
	http    *httpx.Client
	logger  *zap.Logger
}

// New creates a gnomAD source with the production endpoint.
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

func (s *Source) Name() string { return "gnomad" }

func (s *Source) Fields() []string { return lead.GnomadFields }

func (s *Source) Interval() time.Duration { return queryInterval }

// Skip rejects variants without GRCh38 coordinates and oversized alleles.
func (s *Source) Skip(v *lead.Variant) (string, bool) {
	if !v.HasCoordinates() {
		return "missing GRCh38 coordinates", true
	}
	if len(lead.Str(v.GRCh38Ref)) > maxAlleleLength || len(lead.Str(v.GRCh38Alt)) > maxAlleleLength {
		return fmt.Sprintf("allele too long (ref: %d, alt: %d)",
			len(lead.Str(v.GRCh38Ref)), len(lead.Str(v.GRCh38Alt))), true
	}
	return "", false
}

// HasAnnotation keys on the overall frequency column.
func (s *Source) HasAnnotation(v *lead.Variant) bool {
	return v.HasGnomad()
}

type population struct {
	ID string `json:"id"`
	AC *int64 `json:"ac"`
	AN *int64 `json:"an"`
}

type gqlResponse struct {
	Data struct {
		Variant *struct {
			VariantID string `json:"variant_id"`
			Genome    *struct {
				AF          *float64     `json:"af"`
				Populations []population `json:"populations"`
			} `json:"genome"`
		} `json:"variant"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Query looks up the variant in gnomAD v4 and reduces the genome-level
// population counts to minor allele frequencies.
func (s *Source) Query(ctx context.Context, v *lead.Variant) annotate.Outcome {
	variantID := fmt.Sprintf("%s-%d-%s-%s",
		lead.Str(v.GRCh38Chr), *v.GRCh38Pos, lead.Str(v.GRCh38Ref), lead.Str(v.GRCh38Alt))

	body, err := json.Marshal(map[string]any{
		"query": variantQuery,
		"variables": map[string]string{
			"variantId": variantID,
			"datasetId": datasetID,
		},
	})
	if err != nil {
		return annotate.Failed(fmt.Errorf("encode gnomad query: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return annotate.Failed(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return annotate.Failed(fmt.Errorf("gnomad lookup %s: %w", variantID, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return annotate.NotFound()
	}

	var decoded gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return annotate.Failed(fmt.Errorf("decode gnomad response: %w", err))
	}

	// A GraphQL error collection means the variant could not be resolved.
	if len(decoded.Errors) > 0 {
		s.logger.Debug("gnomad rejected variant",
			zap.String("variant", variantID),
			zap.String("message", decoded.Errors[0].Message))
		return annotate.NotFound()
	}
	variant := decoded.Data.Variant
	if variant == nil || variant.Genome == nil {
		return annotate.NotFound()
	}

	return annotate.Found(frequencyFields(variant.Genome.AF, variant.Genome.Populations))
}

// frequencyFields maps the genome-level block to database columns. Only
// populations that resolved to a MAF are included; a missing population
// stays absent rather than becoming zero.
func frequencyFields(overallAF *float64, populations []population) map[string]any {
	mafs := make(map[string]*float64, len(populations))
	for _, pop := range populations {
		mafs[pop.ID] = populationMAF(pop.AC, pop.AN)
	}

	fields := make(map[string]any, len(lead.GnomadFields))
	put := func(field string, maf *float64) {
		if maf != nil {
			fields[field] = *maf
		}
	}

	if overallAF != nil {
		maf := MAF(*overallAF)
		put("gnomad_all", &maf)
	}
	put("gnomad_afr", mafs["afr"])
	put("gnomad_amr", mafs["amr"])
	put("gnomad_asj", mafs["asj"])
	put("gnomad_eas", mafs["eas"])
	put("gnomad_fin", mafs["fin"])
	put("gnomad_nfe", mafs["nfe"])
	put("gnomad_sas", mafs["sas"])

	// gnomAD v4 renamed the unassigned population to "remaining"; older
	// responses used "oth", which is also the database column name.
	if maf := mafs["remaining"]; maf != nil {
		put("gnomad_oth", maf)
	} else {
		put("gnomad_oth", mafs["oth"])
	}

	return fields
}

// populationMAF computes a population's minor allele frequency from its
// allele count and allele number. Absent counts or a zero allele number
// yield nil, never zero: absence and a frequency of zero are distinct.
func populationMAF(ac, an *int64) *float64 {
	if ac == nil || an == nil || *an == 0 {
		return nil
	}
	maf := MAF(float64(*ac) / float64(*an))
	return &maf
}

// MAF converts an allele frequency to the minor allele frequency: the
// frequency of the less common allele, always in [0, 0.5].
func MAF(af float64) float64 {
	if af <= 0.5 {
		return af
	}
	return 1 - af
}
