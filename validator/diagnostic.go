package validator

import (
	"fmt"
	"strings"
)

// Diagnostic codes.
const (
	CodeInvalidType        = "invalid_type"
	CodeRequired           = "required"
	CodeUnknownKey         = "unknown_key"
	CodeAdditionalProperty = "additional_property"
	CodePropertyName       = "property_name"
	CodeDuplicateKey       = "duplicate_key"
	CodeTooSmall           = "too_small"
	CodeTooBig             = "too_big"
	CodeTooShort           = "too_short"
	CodeTooLong            = "too_long"
	CodePattern            = "pattern"
	CodeInvalidEnum        = "invalid_enum"
	CodeConst              = "const"
	CodeMultipleOf         = "multiple_of"
	CodeUniqueItems        = "unique_items"
	CodeContains           = "contains"
	CodeUnionNone          = "union_none"
	CodeUnionAmbiguous     = "union_ambiguous"
	CodeNot                = "not"
	CodeNotAllowed         = "not_allowed"
	CodeDeprecated         = "deprecated"
	CodeParseError         = "parse_error"
	CodeTruncated          = "truncated"
)

// Diagnostic is one path-addressed finding. Whether it is an error or an
// annotation is decided by the Report list that holds it.
type Diagnostic struct {
	// Path is a JSON Pointer into the validated document; "/" is the root.
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
	// Keyword names the schema keyword that produced the diagnostic.
	Keyword string `json:"keyword,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Path == "" || d.Path == "/" {
		return d.Message
	}
	return d.Path + ": " + d.Message
}

// Diagnostics is a list of diagnostics that implements error.
type Diagnostics []Diagnostic

// Error summarizes the first few diagnostics.
func (ds Diagnostics) Error() string {
	if len(ds) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	lim := min(len(ds), maxShown)
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(b, "%s at %s", ds[i].Code, ds[i].Path)
	}
	if len(ds) > lim {
		fmt.Fprintf(b, "; ... (total %d)", len(ds))
	}
	return b.String()
}
