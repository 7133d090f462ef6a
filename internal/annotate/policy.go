package annotate

import (
	"fmt"

	"github.com/bloodgroupdb/leadctl/internal/lead"
)

// Op enumerates what should happen to the database for one variant.
type Op int

const (
	// OpNone leaves the record untouched.
	OpNone Op = iota
	// OpSet writes the resolved fields.
	OpSet
	// OpClear nulls the source's fields.
	OpClear
)

// Instruction is the minimal update derived for one variant. Set carries
// only fields that actually change; Clear carries only the source's own
// columns. A full-record overwrite is never produced.
type Instruction struct {
	Op    Op
	Set   map[string]any
	Clear []string
}

// Policy holds the run-level decision flags shared by all sources.
// ClearNotFound is only meaningful when OverwriteAll is set; the CLI
// rejects the combination otherwise before any network call.
type Policy struct {
	OverwriteAll  bool
	ClearNotFound bool
}

// ShouldSkip applies the pre-query rules: missing identifying input,
// source-specific unsuitability, and "already annotated" when overwriting
// is off. Skipping avoids the external call entirely.
func (p Policy) ShouldSkip(src Source, v *lead.Variant) (string, bool) {
	if reason, skip := src.Skip(v); skip {
		return reason, true
	}
	if !p.OverwriteAll && src.HasAnnotation(v) {
		return fmt.Sprintf("already has %s annotation", src.Name()), true
	}
	return "", false
}

// Decide turns a normalized outcome into an update instruction. A Found
// outcome with no resolved fields behaves exactly like NotFound. Clearing
// only happens when both run flags allow it and the variant actually holds
// a value for this source.
func (p Policy) Decide(src Source, v *lead.Variant, out Outcome) Instruction {
	if out.Status == StatusFound && len(out.Fields) > 0 {
		return Instruction{Op: OpSet, Set: out.Fields}
	}

	if p.ClearNotFound && p.OverwriteAll && src.HasAnnotation(v) {
		return Instruction{Op: OpClear, Clear: src.Fields()}
	}
	return Instruction{Op: OpNone}
}

// ClearPayload renders a clear instruction as the PATCH body that nulls
// each field.
func ClearPayload(fields []string) map[string]any {
	payload := make(map[string]any, len(fields))
	for _, f := range fields {
		payload[f] = nil
	}
	return payload
}
