package lead

// System is one blood group system as returned by GET /system.
type System struct {
	ID     int    `json:"id"`
	Symbol string `json:"symbol"`
}

// AlleleSummary is the shape returned by GET /allele/search.
type AlleleSummary struct {
	ID int `json:"id"`
}

// Allele is the full record returned by GET /allele/{id}.
type Allele struct {
	ID             int     `json:"id"`
	ISBTAllele     *string `json:"isbt_allele"`
	AlternateNames *string `json:"alternate_names"`
	ISBTPhenotype  *string `json:"isbt_phenotype"`

	ReferenceAllele *bool `json:"reference_allele"`
	SVAllele        *bool `json:"sv_allele"`
	NullAllele      *bool `json:"null_allele"`
	ModAllele       *bool `json:"mod_allele"`
	PartialAllele   *bool `json:"partial_allele"`
	WeakAllele      *bool `json:"weak_allele"`
	ELAllele        *bool `json:"el_allele"`

	Notes   *string `json:"notes"`
	Comment *string `json:"comment"`

	Variants     []AlleleVariant `json:"variants"`
	Genbanks     []Genbank       `json:"genbanks"`
	Publications []Publication   `json:"publications"`
}

// AlleleVariant is the variant sub-record embedded in an allele.
type AlleleVariant struct {
	HGVSTranscript       *string `json:"hgvs_transcript"`
	HGVSPredictedProtein *string `json:"hgvs_predicted_protein"`
	RsID                 *string `json:"rsid"`
	HGVSGenomicGRCh38    *string `json:"hgvs_genomic_grch38"`
}

// Genbank is a GenBank accession linked to an allele.
type Genbank struct {
	Accession *string `json:"accession"`
}

// Publication is a literature reference linked to an allele.
type Publication struct {
	Type       *string `json:"type"`
	Identifier *string `json:"identifier"`
	Citation   *string `json:"citation"`
}
