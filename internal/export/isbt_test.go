package export

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/bloodgroupdb/leadctl/internal/lead"
)

func strptr(s string) *string { return &s }
func boolptr(b bool) *bool    { return &b }

// fakeReader serves canned systems and alleles, thread-safe for the
// concurrent exporter.
type fakeReader struct {
	mu      sync.Mutex
	systems []lead.System
	alleles map[string][]lead.AlleleSummary
	records map[int]*lead.Allele
	fetched []int
	failSys string
}

func (f *fakeReader) ListSystems(ctx context.Context) ([]lead.System, error) {
	return f.systems, nil
}

func (f *fakeReader) SearchAlleles(ctx context.Context, symbol string) ([]lead.AlleleSummary, error) {
	if symbol == f.failSys {
		return nil, errors.New("search blew up")
	}
	return f.alleles[symbol], nil
}

func (f *fakeReader) GetAllele(ctx context.Context, id int) (*lead.Allele, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, id)
	f.mu.Unlock()
	a, ok := f.records[id]
	if !ok {
		return nil, errors.New("no such allele")
	}
	return a, nil
}

func sampleAllele() *lead.Allele {
	return &lead.Allele{
		ID:              42,
		ISBTAllele:      strptr("KEL*02.03"),
		ISBTPhenotype:   strptr("K+k-"),
		AlternateNames:  strptr("Kpa"),
		ReferenceAllele: boolptr(false),
		NullAllele:      boolptr(true),
		Notes:           strptr("well characterised"),
		Variants: []lead.AlleleVariant{
			{
				HGVSTranscript:       strptr("NM_000420.3:c.841C>T"),
				HGVSPredictedProtein: strptr("NP_000411.1:p.Arg281Trp"),
				RsID:                 strptr("rs8176058"),
				HGVSGenomicGRCh38:    strptr("NC_000007.14:g.142960432C>T"),
			},
			{
				HGVSTranscript: strptr("NM_000420.3:c.1A>G"),
				// protein, rsid and genomic intentionally absent
			},
		},
		Genbanks: []lead.Genbank{{Accession: strptr("M64934")}},
		Publications: []lead.Publication{
			{Type: strptr("pmid"), Identifier: strptr("1248172")},
			{Type: strptr("doi"), Citation: strptr("Daniels G. Human Blood Groups.")},
		},
	}
}

func TestFlattenAllele(t *testing.T) {
	row := FlattenAllele(sampleAllele())
	require.Len(t, row, len(Columns))

	byCol := map[string]string{}
	for i, col := range Columns {
		byCol[col] = row[i]
	}

	assert.Equal(t, "42", byCol["database_stable_id"])
	assert.Equal(t, "K+k-", byCol["isbt_phenotype"])
	assert.Equal(t, "KEL*02.03", byCol["isbt_allele"])
	assert.Equal(t, "0", byCol["reference_allele"])
	assert.Equal(t, "1", byCol["null_allele"])
	assert.Equal(t, "0", byCol["sv_allele"], "absent flag renders as 0")

	assert.Equal(t, "NP_000411.1:p.Arg281Trp\n-", byCol["protein_variant"],
		"missing sub-values become dashes, one line per variant")
	assert.Equal(t, "rs8176058\n-", byCol["rsid"])
	assert.Equal(t, "NC_000007.14:g.142960432C>T\n-", byCol["genomic_variant"])
	assert.Equal(t, "M64934", byCol["genbanks"])
	assert.Equal(t, "PMID:1248172\nDaniels G. Human Blood Groups.", byCol["publications"])
	assert.Equal(t, "well characterised", byCol["notes"])
}

func TestFlattenAlleleNoRelations(t *testing.T) {
	row := FlattenAllele(&lead.Allele{ID: 7})
	byCol := map[string]string{}
	for i, col := range Columns {
		byCol[col] = row[i]
	}

	assert.Equal(t, "-", byCol["protein_variant"])
	assert.Equal(t, "-", byCol["rsid"])
	assert.Equal(t, "-", byCol["genbanks"])
	assert.Equal(t, "-", byCol["publications"])
	assert.Equal(t, "", byCol["isbt_allele"])
}

func TestRunWritesOneWorkbookPerSystem(t *testing.T) {
	dir := t.TempDir()
	reader := &fakeReader{
		systems: []lead.System{{ID: 1, Symbol: "KEL"}, {ID: 2, Symbol: "RH"}, {ID: 3, Symbol: "KEL"}},
		alleles: map[string][]lead.AlleleSummary{
			"KEL": {{ID: 42}},
			"RH":  {{ID: 43}},
		},
		records: map[int]*lead.Allele{
			42: sampleAllele(),
			43: {ID: 43, ISBTAllele: strptr("RH*01")},
		},
	}

	exporter := NewExporter(reader, dir, 2)
	require.NoError(t, exporter.Run(context.Background()))

	sort.Ints(reader.fetched)
	assert.Equal(t, []int{42, 43}, reader.fetched, "duplicate system symbols export once")

	f, err := excelize.OpenFile(filepath.Join(dir, "KEL.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Sheet1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "database_stable_id", header)

	id, err := f.GetCellValue("Sheet1", "A2")
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	_, err = excelize.OpenFile(filepath.Join(dir, "RH.xlsx"))
	require.NoError(t, err)
}

func TestRunSurvivesSystemFailure(t *testing.T) {
	dir := t.TempDir()
	reader := &fakeReader{
		systems: []lead.System{{ID: 1, Symbol: "BAD"}, {ID: 2, Symbol: "RH"}},
		alleles: map[string][]lead.AlleleSummary{"RH": {{ID: 43}}},
		records: map[int]*lead.Allele{43: {ID: 43}},
		failSys: "BAD",
	}

	exporter := NewExporter(reader, dir, 1)
	require.NoError(t, exporter.Run(context.Background()),
		"a failing system must not abort the other exports")

	_, err := excelize.OpenFile(filepath.Join(dir, "RH.xlsx"))
	require.NoError(t, err)
}
