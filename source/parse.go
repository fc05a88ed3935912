// Package source turns YAML and JSON payloads into value trees.
//
// Both formats are lowered to the same token stream and decoded by the
// internal engine, so duplicate keys, nesting depth, node budgets and size
// limits are enforced the same way regardless of the input format.
package source

import (
	"errors"
	"fmt"
	"io"
	"slices"

	eng "github.com/reoring/ccv/internal/engine"
	"github.com/reoring/ccv/value"
)

// Format names a document syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Formats lists the supported formats.
var Formats = []Format{FormatYAML, FormatJSON}

// ParseFormat converts a wire name into a Format.
func ParseFormat(s string) (Format, error) {
	if f := Format(s); slices.Contains(Formats, f) {
		return f, nil
	}
	return "", fmt.Errorf("unsupported format %q (want yaml or json)", s)
}

// DuplicatePolicy selects how repeated mapping keys are handled.
type DuplicatePolicy int

const (
	// DuplicateError rejects the document.
	DuplicateError DuplicatePolicy = iota
	// DuplicateWarn keeps the last value and records a Warning.
	DuplicateWarn
	// DuplicateIgnore keeps the last value silently.
	DuplicateIgnore
)

// ParseDuplicatePolicy converts "error", "warn" or "ignore" into a policy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "error", "":
		return DuplicateError, nil
	case "warn":
		return DuplicateWarn, nil
	case "ignore":
		return DuplicateIgnore, nil
	default:
		return 0, fmt.Errorf("unknown duplicate key policy %q", s)
	}
}

const (
	DefaultMaxDepth = 256
	DefaultMaxNodes = 1_000_000
)

// Options controls parsing limits and policies.
type Options struct {
	Duplicates DuplicatePolicy
	MaxDepth   int
	MaxNodes   int
	MaxBytes   int64
}

// Option mutates Options.
type Option func(*Options)

// WithDuplicateKeys sets the duplicate key policy.
func WithDuplicateKeys(p DuplicatePolicy) Option { return func(o *Options) { o.Duplicates = p } }

// WithMaxDepth bounds container nesting. Zero disables the check.
func WithMaxDepth(n int) Option { return func(o *Options) { o.MaxDepth = n } }

// WithMaxNodes bounds the number of values, aliases expanded. Zero disables the check.
func WithMaxNodes(n int) Option { return func(o *Options) { o.MaxNodes = n } }

// WithMaxBytes bounds the payload size. Zero disables the check.
func WithMaxBytes(n int64) Option { return func(o *Options) { o.MaxBytes = n } }

func defaultOptions() Options {
	return Options{Duplicates: DuplicateError, MaxDepth: DefaultMaxDepth, MaxNodes: DefaultMaxNodes}
}

// Warning is a non-fatal observation made while parsing.
type Warning struct {
	Code    string
	Path    string
	Message string
	Pos     value.Position
}

// Result is the outcome of a successful parse.
type Result struct {
	Value    value.Value
	Warnings []Warning
}

// Parse decodes payload according to f.
func Parse(payload []byte, f Format, opts ...Option) (Result, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.MaxBytes > 0 && int64(len(payload)) > o.MaxBytes {
		return Result{}, &ParseError{
			Format:  f,
			Code:    eng.CodeTruncated,
			Offset:  o.MaxBytes,
			Message: fmt.Sprintf("input exceeds the maximum size of %d bytes", o.MaxBytes),
		}
	}

	var (
		ts  eng.TokenSource
		err error
	)
	switch f {
	case FormatJSON:
		ts, err = newJSONSource(payload)
	case FormatYAML:
		ts, err = newYAMLSource(payload, o.MaxNodes)
	default:
		return Result{}, fmt.Errorf("source: unsupported format %q", f)
	}
	if err != nil {
		return Result{}, err
	}

	var res Result
	enforced := eng.WrapWithEnforcement(ts, eng.EnforceOptions{
		OnDuplicate: strictness(o.Duplicates),
		MaxDepth:    o.MaxDepth,
		MaxNodes:    o.MaxNodes,
		MaxBytes:    o.MaxBytes,
		IssueSink: func(si eng.SimpleIssue) {
			res.Warnings = append(res.Warnings, Warning(si))
		},
	})
	v, err := eng.Decode(enforced)
	if err != nil {
		return Result{}, toParseError(f, payload, err)
	}
	res.Value = v
	return res, nil
}

func strictness(p DuplicatePolicy) eng.DuplicateStrictness {
	switch p {
	case DuplicateWarn:
		return eng.DupWarn
	case DuplicateIgnore:
		return eng.DupIgnore
	default:
		return eng.DupError
	}
}

// ParseError reports a payload that is not well-formed for its format or
// that breaks a parsing limit.
type ParseError struct {
	Format  Format
	Code    string
	Path    string
	Line    int
	Column  int
	Offset  int64
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Format, e.Message)
	switch {
	case e.Line > 0 && e.Column > 0:
		msg += fmt.Sprintf(" at line %d column %d", e.Line, e.Column)
	case e.Line > 0:
		msg += fmt.Sprintf(" at line %d", e.Line)
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Position returns the error location as a value.Position.
func (e *ParseError) Position() value.Position {
	return value.Position{Line: e.Line, Column: e.Column, Offset: e.Offset}
}

// AsParseError extracts a *ParseError from err.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func newParseError(f Format, payload []byte, code, msg string, pos value.Position, err error) *ParseError {
	if pos.Line == 0 && pos.Offset >= 0 {
		pos = lineColumn(payload, pos.Offset)
	}
	return &ParseError{
		Format:  f,
		Code:    code,
		Line:    pos.Line,
		Column:  pos.Column,
		Offset:  pos.Offset,
		Message: msg,
		Err:     err,
	}
}

func toParseError(f Format, payload []byte, err error) error {
	if pe, ok := AsParseError(err); ok {
		return pe
	}
	var ie *eng.IssueError
	if errors.As(err, &ie) {
		pe := newParseError(f, payload, ie.Code, ie.Message, ie.Pos, err)
		pe.Path = ie.Path
		return pe
	}
	var te *eng.TokenError
	if errors.As(err, &te) {
		return newParseError(f, payload, CodeParseError, te.Err.Error(), te.Pos, err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return newParseError(f, payload, CodeParseError, "unexpected end of input", value.NoPosition, err)
	}
	return newParseError(f, payload, CodeParseError, err.Error(), value.NoPosition, err)
}

// CodeParseError is the ParseError code for malformed syntax.
const CodeParseError = "parse_error"

// lineColumn converts a byte offset into a 1-based line and column.
func lineColumn(payload []byte, off int64) value.Position {
	if off < 0 {
		return value.NoPosition
	}
	if off > int64(len(payload)) {
		off = int64(len(payload))
	}
	line, col := 1, 1
	for _, c := range payload[:off] {
		if c == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return value.Position{Line: line, Column: col, Offset: off}
}

// lineTracker converts monotonically increasing offsets into positions
// without rescanning the payload from the start.
type lineTracker struct {
	payload []byte
	off     int64
	line    int
	col     int
}

func (t *lineTracker) at(off int64) value.Position {
	if off < t.off {
		return lineColumn(t.payload, off)
	}
	if off > int64(len(t.payload)) {
		off = int64(len(t.payload))
	}
	for ; t.off < off; t.off++ {
		if t.payload[t.off] == '\n' {
			t.line++
			t.col = 1
			continue
		}
		t.col++
	}
	return value.Position{Line: t.line, Column: t.col, Offset: off}
}
