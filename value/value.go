// Package value holds the in-memory document tree shared by the parser, the
// schema resolver and the validator.
//
// A Value is a closed variant over the JSON data model (null, boolean,
// number, string, sequence, mapping). Mappings keep their members in the
// order they were encountered so diagnostics and re-encoded output are
// deterministic. Values are immutable once built and safe to share between
// goroutines.
package value

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind enumerates the variants of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

// String returns the JSON Schema type name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "array"
	case KindMapping:
		return "object"
	default:
		return "unknown"
	}
}

// Position locates a value in its source text. Line and Column are 1-based
// and zero when unknown; Offset is a byte offset and -1 when unknown.
type Position struct {
	Line   int
	Column int
	Offset int64
}

// NoPosition is the Position of values that were not read from text.
var NoPosition = Position{Offset: -1}

// Known reports whether the position carries a line or an offset.
func (p Position) Known() bool { return p.Line > 0 || p.Offset >= 0 }

func (p Position) String() string {
	switch {
	case p.Line > 0:
		return fmt.Sprintf("line %d column %d", p.Line, p.Column)
	case p.Offset >= 0:
		return fmt.Sprintf("offset %d", p.Offset)
	default:
		return "unknown position"
	}
}

// Member is one key/value pair of a mapping.
type Member struct {
	Key    string
	KeyPos Position
	Value  Value
}

// indexThreshold is the member count above which mappings keep a key index.
const indexThreshold = 8

// Value is a node of a parsed document.
type Value struct {
	kind    Kind
	b       bool
	f       float64
	text    string // string contents, or the literal of a number
	items   []Value
	members []Member
	index   map[string]int
	pos     Position
}

// Null returns a null value.
func Null(pos Position) Value { return Value{kind: KindNull, pos: pos} }

// Bool returns a boolean value.
func Bool(b bool, pos Position) Value { return Value{kind: KindBool, b: b, pos: pos} }

// String returns a string value.
func String(s string, pos Position) Value { return Value{kind: KindString, text: s, pos: pos} }

// Number parses a JSON number literal.
func Number(literal string, pos Position) (Value, error) {
	f, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		var ne *strconv.NumError
		if !errors.As(err, &ne) || ne.Err != strconv.ErrRange {
			return Value{}, fmt.Errorf("invalid number %q: %w", literal, err)
		}
	}
	return Value{kind: KindNumber, f: f, text: literal, pos: pos}, nil
}

// Float returns a number value from a float64. The literal is the shortest
// representation that round-trips.
func Float(f float64, pos Position) Value {
	return Value{kind: KindNumber, f: f, text: strconv.FormatFloat(f, 'g', -1, 64), pos: pos}
}

// Int returns a number value from an int64.
func Int(i int64, pos Position) Value {
	return Value{kind: KindNumber, f: float64(i), text: strconv.FormatInt(i, 10), pos: pos}
}

// Sequence returns a sequence value. The slice is owned by the value afterwards.
func Sequence(items []Value, pos Position) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindSequence, items: items, pos: pos}
}

// Mapping returns a mapping value. Keys are expected to be unique; when a key
// repeats, lookups resolve to the last occurrence. The slice is owned by the
// value afterwards.
func Mapping(members []Member, pos Position) Value {
	if members == nil {
		members = []Member{}
	}
	v := Value{kind: KindMapping, members: members, pos: pos}
	if len(members) > indexThreshold {
		v.index = make(map[string]int, len(members))
		for i, m := range members {
			v.index[m.Key] = i
		}
	}
	return v
}

// Kind returns the variant of v. The zero Value is null.
func (v Value) Kind() Kind { return v.kind }

// Pos returns the source position of v.
func (v Value) Pos() Position { return v.pos }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload; false for other kinds.
func (v Value) AsBool() bool { return v.kind == KindBool && v.b }

// AsFloat returns the numeric payload; 0 for other kinds.
func (v Value) AsFloat() float64 {
	if v.kind != KindNumber {
		return 0
	}
	return v.f
}

// Literal returns the number literal; empty for other kinds.
func (v Value) Literal() string {
	if v.kind != KindNumber {
		return ""
	}
	return v.text
}

// AsString returns the string payload; empty for other kinds.
func (v Value) AsString() string {
	if v.kind != KindString {
		return ""
	}
	return v.text
}

// IsInteger reports whether v is a number without a fractional part.
func (v Value) IsInteger() bool {
	if v.kind != KindNumber {
		return false
	}
	if math.IsInf(v.f, 0) || math.IsNaN(v.f) {
		return false
	}
	if !strings.ContainsAny(v.text, ".eE") {
		return true
	}
	return math.Trunc(v.f) == v.f
}

// Len returns the number of elements of a sequence or members of a mapping.
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.items)
	case KindMapping:
		return len(v.members)
	default:
		return 0
	}
}

// Items returns the elements of a sequence. Callers must not modify the slice.
func (v Value) Items() []Value {
	if v.kind != KindSequence {
		return nil
	}
	return v.items
}

// Members returns the members of a mapping in source order. Callers must not
// modify the slice.
func (v Value) Members() []Member {
	if v.kind != KindMapping {
		return nil
	}
	return v.members
}

// Get returns the value stored under key in a mapping.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMapping {
		return Value{}, false
	}
	if v.index != nil {
		i, ok := v.index[key]
		if !ok {
			return Value{}, false
		}
		return v.members[i].Value, true
	}
	for i := len(v.members) - 1; i >= 0; i-- {
		if v.members[i].Key == key {
			return v.members[i].Value, true
		}
	}
	return Value{}, false
}

// Has reports whether a mapping holds key.
func (v Value) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// Without returns a copy of the mapping with key removed. Other kinds are
// returned unchanged.
func (v Value) Without(key string) Value {
	if v.kind != KindMapping || !v.Has(key) {
		return v
	}
	out := make([]Member, 0, len(v.members)-1)
	for _, m := range v.members {
		if m.Key != key {
			out = append(out, m)
		}
	}
	return Mapping(out, v.pos)
}

// At resolves an RFC 6901 pointer relative to v. Both "" and "/" address v.
func (v Value) At(pointer string) (Value, bool) {
	cur := v
	for _, tok := range SplitPointer(pointer) {
		switch cur.kind {
		case KindMapping:
			next, ok := cur.Get(tok)
			if !ok {
				return Value{}, false
			}
			cur = next
		case KindSequence:
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= len(cur.items) {
				return Value{}, false
			}
			cur = cur.items[i]
		default:
			return Value{}, false
		}
	}
	return cur, true
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return v.text
	case KindString:
		return strconv.Quote(v.text)
	default:
		b, err := v.MarshalJSON()
		if err != nil {
			return v.kind.String()
		}
		return string(b)
	}
}
