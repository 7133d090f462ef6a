// Package annotate implements the annotation reconciliation engine: the
// per-variant, per-source policy deciding whether to query an external
// service, how to turn its normalized answer into a partial database
// update, and how to account for the run.
package annotate

// Status classifies a normalized external lookup.
type Status int

const (
	// StatusFound means the service answered with usable data.
	StatusFound Status = iota
	// StatusNotFound means the service confirmed the variant is absent.
	// This is a terminal, meaningful answer, not an error.
	StatusNotFound
	// StatusError means transport failed after retries. Unlike NotFound
	// it says nothing about the variant itself.
	StatusError
)

// Outcome is the normalized result of one external lookup. Fields maps
// database column names to their resolved values and carries only columns
// that resolved to a non-empty value; a Found outcome with no fields is
// treated by the policy exactly like NotFound.
type Outcome struct {
	Status Status
	Fields map[string]any
	Err    error
}

// Found builds a successful outcome carrying the resolved fields.
func Found(fields map[string]any) Outcome {
	return Outcome{Status: StatusFound, Fields: fields}
}

// NotFound builds a confirmed-absent outcome.
func NotFound() Outcome {
	return Outcome{Status: StatusNotFound}
}

// Failed builds a transport-error outcome.
func Failed(err error) Outcome {
	return Outcome{Status: StatusError, Err: err}
}
