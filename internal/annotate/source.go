package annotate

import (
	"context"
	"time"

	"github.com/bloodgroupdb/leadctl/internal/lead"
)

// Source is one external annotation service. Each implementation owns a
// fixed set of database columns, knows which variants it cannot usefully
// query, and performs one logical lookup per variant.
type Source interface {
	// Name identifies the source in logs and summaries.
	Name() string

	// Fields lists the database columns this source writes and clears.
	Fields() []string

	// Skip reports a pre-query reason to leave the variant alone, such as
	// missing identifying input or alleles the service rejects outright.
	// Skipped variants consume no network call and no rate-limit budget.
	Skip(v *lead.Variant) (reason string, skip bool)

	// HasAnnotation reports whether the variant already carries a value in
	// any of this source's columns.
	HasAnnotation(v *lead.Variant) bool

	// Query performs the lookup and returns a normalized outcome. It never
	// returns a Go error: transport failures become StatusError outcomes.
	Query(ctx context.Context, v *lead.Variant) Outcome

	// Interval is the fixed pause owed to the service after every query
	// attempt, sized to its published rate limit.
	Interval() time.Duration
}
