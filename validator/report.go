package validator

import (
	"github.com/goccy/go-json"
)

// Report is the outcome of validating one document. Validity is derived
// from Errors and never stored.
type Report struct {
	Errors      []Diagnostic
	Annotations []Diagnostic
}

// Valid reports whether the report holds no errors.
func (r Report) Valid() bool { return len(r.Errors) == 0 }

// Err returns the errors as an error value, or nil when the report is valid.
func (r Report) Err() error {
	if r.Valid() {
		return nil
	}
	return Diagnostics(r.Errors)
}

type reportJSON struct {
	Annotations []Diagnostic `json:"annotations"`
	Errors      []Diagnostic `json:"errors"`
	IsValid     bool         `json:"is_valid"`
}

// MarshalJSON encodes the report as
// {"annotations":[...],"errors":[...],"is_valid":bool}; empty lists encode
// as [].
func (r Report) MarshalJSON() ([]byte, error) {
	out := reportJSON{Annotations: r.Annotations, Errors: r.Errors, IsValid: r.Valid()}
	if out.Annotations == nil {
		out.Annotations = []Diagnostic{}
	}
	if out.Errors == nil {
		out.Errors = []Diagnostic{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a report. is_valid is ignored and recomputed from
// the errors.
func (r *Report) UnmarshalJSON(b []byte) error {
	var in reportJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	r.Errors = in.Errors
	r.Annotations = in.Annotations
	if len(r.Errors) == 0 {
		r.Errors = nil
	}
	if len(r.Annotations) == 0 {
		r.Annotations = nil
	}
	return nil
}
