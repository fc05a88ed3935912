package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a SchemaError.
type ErrorKind int

const (
	// Malformed: the schema document is not usable (bad JSON, a keyword with
	// a value of the wrong shape, an unknown type name, a pattern that does
	// not compile, a $defs that is not a mapping).
	Malformed ErrorKind = iota
	// DanglingReference: a $ref names a definition that does not exist.
	DanglingReference
	// InvalidReference: a $ref is not of the local "#/$defs/<name>" form.
	InvalidReference
	// CyclicReference: expanding a $ref leads back to itself.
	CyclicReference
)

func (k ErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case DanglingReference:
		return "dangling_reference"
	case InvalidReference:
		return "invalid_reference"
	case CyclicReference:
		return "cyclic_reference"
	default:
		return "unknown"
	}
}

// SchemaError reports a schema that cannot drive validation. It is fatal at
// start-up.
type SchemaError struct {
	Kind ErrorKind
	// Path is the JSON Pointer, within the schema document, of the offending
	// node ("/" for the root).
	Path string
	// Ref is the offending $ref value, if any.
	Ref string
	// Chain lists the references being expanded when a cycle closed, ending
	// with the reference that repeats.
	Chain   []string
	Message string
	Err     error
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("schema: ")
	switch e.Kind {
	case CyclicReference:
		fmt.Fprintf(&b, "cyclic reference %s", strings.Join(e.Chain, " -> "))
	case DanglingReference:
		fmt.Fprintf(&b, "dangling reference %q", e.Ref)
	case InvalidReference:
		fmt.Fprintf(&b, "invalid reference %q", e.Ref)
	default:
		b.WriteString(e.Message)
	}
	if e.Kind != Malformed && e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " at %s", e.Path)
	}
	return b.String()
}

func (e *SchemaError) Unwrap() error { return e.Err }

// AsSchemaError extracts a *SchemaError from err using errors.As.
func AsSchemaError(err error) (*SchemaError, bool) {
	var se *SchemaError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func malformed(path, format string, args ...any) *SchemaError {
	return &SchemaError{Kind: Malformed, Path: path, Message: fmt.Sprintf(format, args...)}
}
