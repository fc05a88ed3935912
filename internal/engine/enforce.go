package engine

import (
	"github.com/reoring/ccv/value"
)

// Enforcement wrapper for TokenSource to apply duplicate key handling,
// max depth checks, node budgets and max bytes truncation in a streaming
// fashion.

// DuplicateStrictness controls duplicate key handling.
type DuplicateStrictness int

const (
	DupError DuplicateStrictness = iota
	DupWarn
	DupIgnore
)

// Issue codes produced by the enforcement layer.
const (
	CodeDuplicateKey = "duplicate_key"
	CodeMaxDepth     = "max_depth"
	CodeMaxNodes     = "max_nodes"
	CodeTruncated    = "truncated"
)

// SimpleIssue is a minimal issue representation used by internal helpers.
type SimpleIssue struct {
	Code    string
	Path    string
	Message string
	Pos     value.Position
}

// EnforceOptions controls runtime enforcement behavior.
type EnforceOptions struct {
	OnDuplicate DuplicateStrictness
	MaxDepth    int
	MaxBytes    int64
	// MaxNodes bounds the number of values produced, which keeps YAML alias
	// expansion in check.
	MaxNodes int
	// IssueSink receives non-fatal issues (duplicate keys under DupWarn).
	IssueSink func(SimpleIssue)
}

// IssueError is a lightweight error carrying a SimpleIssue.
type IssueError struct{ SimpleIssue }

func (e *IssueError) Error() string { return e.SimpleIssue.Message }

type containerKind int

const (
	kindObject containerKind = iota
	kindArray
)

type frame struct {
	kind       containerKind
	keys       map[string]value.Position
	path       *value.Path
	nextIndex  int
	pendingKey *value.Path
}

// WrapWithEnforcement returns a TokenSource that enforces duplicate key policy,
// maximum nesting depth, node budget and maximum consumed bytes.
func WrapWithEnforcement(inner TokenSource, opt EnforceOptions) TokenSource {
	return &enforcingTokenSource{inner: inner, opt: opt}
}

type enforcingTokenSource struct {
	inner TokenSource
	opt   EnforceOptions
	stack []frame
	nodes int
}

func (e *enforcingTokenSource) NextToken() (Token, error) {
	tok, err := e.inner.NextToken()
	if err != nil {
		return Token{}, err
	}

	if e.opt.MaxBytes > 0 {
		if off := e.Location(); off > e.opt.MaxBytes {
			return Token{}, e.fail(CodeTruncated, e.currentPath(), tok.Pos, "input exceeds the maximum size")
		}
	}

	switch tok.Kind {
	case KindKey:
		if n := len(e.stack); n > 0 && e.stack[n-1].kind == kindObject {
			top := &e.stack[n-1]
			p := top.path.Field(tok.String)
			if first, dup := top.keys[tok.String]; dup && e.opt.OnDuplicate != DupIgnore {
				si := SimpleIssue{
					Code:    CodeDuplicateKey,
					Path:    p.Pointer(),
					Message: duplicateMessage(tok.String, first),
					Pos:     tok.Pos,
				}
				if e.opt.OnDuplicate == DupError {
					return Token{}, &IssueError{si}
				}
				if e.opt.IssueSink != nil {
					e.opt.IssueSink(si)
				}
			} else if !dup {
				top.keys[tok.String] = tok.Pos
			}
			top.pendingKey = p
		}
		return tok, nil
	case KindEndObject, KindEndArray:
		if n := len(e.stack); n > 0 {
			e.stack = e.stack[:n-1]
		}
		return tok, nil
	}

	// a value starts here
	path := e.valuePath()
	e.nodes++
	if e.opt.MaxNodes > 0 && e.nodes > e.opt.MaxNodes {
		return Token{}, e.fail(CodeMaxNodes, path.Pointer(), tok.Pos, "document expands to too many nodes")
	}
	switch tok.Kind {
	case KindBeginObject:
		e.stack = append(e.stack, frame{kind: kindObject, keys: make(map[string]value.Position), path: path})
	case KindBeginArray:
		e.stack = append(e.stack, frame{kind: kindArray, path: path})
	}
	if e.opt.MaxDepth > 0 && len(e.stack) > e.opt.MaxDepth {
		return Token{}, e.fail(CodeMaxDepth, path.Pointer(), tok.Pos, "maximum nesting depth exceeded")
	}
	return tok, nil
}

func (e *enforcingTokenSource) fail(code, path string, pos value.Position, msg string) error {
	return &IssueError{SimpleIssue{Code: code, Path: path, Message: msg, Pos: pos}}
}

// valuePath returns the path of the value whose first token was just read
// and advances the enclosing container.
func (e *enforcingTokenSource) valuePath() *value.Path {
	n := len(e.stack)
	if n == 0 {
		return value.Root()
	}
	top := &e.stack[n-1]
	if top.kind == kindArray {
		p := top.path.Index(top.nextIndex)
		top.nextIndex++
		return p
	}
	if top.pendingKey != nil {
		p := top.pendingKey
		top.pendingKey = nil
		return p
	}
	return top.path
}

func (e *enforcingTokenSource) currentPath() string {
	if n := len(e.stack); n > 0 {
		return e.stack[n-1].path.Pointer()
	}
	return "/"
}

func duplicateMessage(key string, first value.Position) string {
	if first.Known() {
		return "duplicate key \"" + key + "\" (first defined at " + first.String() + ")"
	}
	return "duplicate key \"" + key + "\""
}

func (e *enforcingTokenSource) Location() int64 { return e.inner.Location() }
