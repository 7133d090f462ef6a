// Package lead provides a client and data model for the Lead blood group
// variant database API.
package lead

// Database field names for the annotation columns each external source owns.
const (
	FieldExon   = "exon"
	FieldIntron = "intron"
	FieldRsID   = "rsid"
)

// GnomadFields lists the database columns holding gnomAD minor allele
// frequencies, overall first then the eight superpopulations.
var GnomadFields = []string{
	"gnomad_all",
	"gnomad_afr",
	"gnomad_amr",
	"gnomad_asj",
	"gnomad_eas",
	"gnomad_fin",
	"gnomad_nfe",
	"gnomad_oth",
	"gnomad_sas",
}

// Variant is one variant record as returned by GET /variant.
// Annotation columns are pointers: nil means the database holds no value.
type Variant struct {
	ID             int     `json:"id"`
	HGVSTranscript *string `json:"hgvs_transcript"`

	GRCh38Chr *string `json:"grch38_chr"`
	GRCh38Pos *int64  `json:"grch38_pos"`
	GRCh38Ref *string `json:"grch38_ref"`
	GRCh38Alt *string `json:"grch38_alt"`

	Exon   *string `json:"exon"`
	Intron *string `json:"intron"`
	RsID   *string `json:"rsid"`

	GnomadAll *float64 `json:"gnomad_all"`
	GnomadAFR *float64 `json:"gnomad_afr"`
	GnomadAMR *float64 `json:"gnomad_amr"`
	GnomadASJ *float64 `json:"gnomad_asj"`
	GnomadEAS *float64 `json:"gnomad_eas"`
	GnomadFIN *float64 `json:"gnomad_fin"`
	GnomadNFE *float64 `json:"gnomad_nfe"`
	GnomadOTH *float64 `json:"gnomad_oth"`
	GnomadSAS *float64 `json:"gnomad_sas"`
}

// Str dereferences an optional string column; nil becomes "".
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// HasCoordinates reports whether all four GRCh38 identifying fields are set.
func (v *Variant) HasCoordinates() bool {
	return Str(v.GRCh38Chr) != "" && v.GRCh38Pos != nil &&
		Str(v.GRCh38Ref) != "" && Str(v.GRCh38Alt) != ""
}

// HasExonIntron reports whether either of the transcript-position columns
// holds a value. Exon and intron are independent: one may be set without
// the other.
func (v *Variant) HasExonIntron() bool {
	return Str(v.Exon) != "" || Str(v.Intron) != ""
}

// HasRsID reports whether the rsID column holds a value.
func (v *Variant) HasRsID() bool {
	return Str(v.RsID) != ""
}

// HasGnomad reports whether the variant already carries gnomAD frequencies.
// The overall column is the marker the annotation scripts key on.
func (v *Variant) HasGnomad() bool {
	return v.GnomadAll != nil
}
