package ccv

import (
	"github.com/reoring/ccv/schema"
	"github.com/reoring/ccv/source"
	"github.com/reoring/ccv/validator"
)

type (
	// Report is the outcome of one validation.
	Report = validator.Report
	// Diagnostic is one error or annotation of a Report.
	Diagnostic = validator.Diagnostic
	// Format names a payload syntax.
	Format = source.Format
	// ParseError reports a payload that could not be parsed.
	ParseError = source.ParseError
	// SchemaError reports a schema that could not be resolved or compiled.
	SchemaError = schema.SchemaError
)

const (
	FormatYAML = source.FormatYAML
	FormatJSON = source.FormatJSON
)

// ParseFormat accepts "yaml" or "json".
func ParseFormat(s string) (Format, error) { return source.ParseFormat(s) }

// AsParseError extracts a *ParseError from err using errors.As.
func AsParseError(err error) (*ParseError, bool) { return source.AsParseError(err) }

// AsSchemaError extracts a *SchemaError from err using errors.As.
func AsSchemaError(err error) (*SchemaError, bool) { return schema.AsSchemaError(err) }
