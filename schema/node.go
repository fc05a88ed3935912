package schema

import (
	"regexp"

	"github.com/reoring/ccv/value"
)

// Kind is the primary shape of a compiled schema node.
type Kind int

const (
	// KindAny accepts every value (true, {} or a node with constraints but no type).
	KindAny Kind = iota
	// KindNever rejects every value (false).
	KindNever
	KindObject
	KindArray
	KindString
	KindNumber
	KindInteger
	KindBoolean
	KindNull
	// KindEnum has no type but an enum or const.
	KindEnum
	// KindComposite has no type but allOf/anyOf/oneOf/not.
	KindComposite
	// KindMulti lists several type names.
	KindMulti
)

func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindNever:
		return "never"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindNull:
		return "null"
	case KindEnum:
		return "enum"
	case KindComposite:
		return "composite"
	case KindMulti:
		return "multi"
	default:
		return "unknown"
	}
}

// TypeSet is a set of JSON Schema type names.
type TypeSet uint8

const (
	TypeNull TypeSet = 1 << iota
	TypeBoolean
	TypeObject
	TypeArray
	TypeNumber
	TypeInteger
	TypeString
)

var typeNames = []struct {
	t    TypeSet
	name string
}{
	{TypeNull, "null"},
	{TypeBoolean, "boolean"},
	{TypeObject, "object"},
	{TypeArray, "array"},
	{TypeNumber, "number"},
	{TypeInteger, "integer"},
	{TypeString, "string"},
}

func typeByName(name string) (TypeSet, bool) {
	for _, tn := range typeNames {
		if tn.name == name {
			return tn.t, true
		}
	}
	return 0, false
}

// Names returns the type names in the set in a fixed order.
func (t TypeSet) Names() []string {
	var out []string
	for _, tn := range typeNames {
		if t&tn.t != 0 {
			out = append(out, tn.name)
		}
	}
	return out
}

// Accepts reports whether v is an instance of one of the types in the set.
// "integer" accepts numbers with a zero fraction and "number" accepts
// integers.
func (t TypeSet) Accepts(v value.Value) bool {
	switch v.Kind() {
	case value.KindNull:
		return t&TypeNull != 0
	case value.KindBool:
		return t&TypeBoolean != 0
	case value.KindMapping:
		return t&TypeObject != 0
	case value.KindSequence:
		return t&TypeArray != 0
	case value.KindString:
		return t&TypeString != 0
	case value.KindNumber:
		if t&TypeNumber != 0 {
			return true
		}
		return t&TypeInteger != 0 && v.IsInteger()
	}
	return false
}

// UnknownKeys selects what happens to object keys that no properties,
// patternProperties or additionalProperties entry covers.
type UnknownKeys int

const (
	// UnknownInherit defers to the validator-wide policy.
	UnknownInherit UnknownKeys = iota
	UnknownIgnore
	UnknownAnnotate
)

// ParseUnknownKeys converts "ignore" or "annotate".
func ParseUnknownKeys(s string) (UnknownKeys, bool) {
	switch s {
	case "ignore":
		return UnknownIgnore, true
	case "annotate":
		return UnknownAnnotate, true
	}
	return UnknownInherit, false
}

func (u UnknownKeys) String() string {
	switch u {
	case UnknownIgnore:
		return "ignore"
	case UnknownAnnotate:
		return "annotate"
	default:
		return "inherit"
	}
}

// Node is a compiled schema. Nodes are immutable after Compile and safe for
// concurrent use.
type Node struct {
	Kind Kind
	// Types is non-zero when the schema declares "type".
	Types TypeSet
	// Pointer locates the node in the resolved schema document.
	Pointer string

	Enum     []value.Value
	HasConst bool
	Const    value.Value

	Object *ObjectRules
	Array  *ArrayRules
	String *StringRules
	Number *NumberRules

	AllOf []*Node
	AnyOf []*Node
	OneOf []*Node
	Not   *Node

	Deprecated            bool
	DeprecatedVersion     string
	DeprecatedDescription string
}

// Property is one entry of "properties".
type Property struct {
	Name string
	Node *Node
}

// PatternProperty is one entry of "patternProperties".
type PatternProperty struct {
	Pattern string
	Re      *regexp.Regexp
	Node    *Node
}

// ObjectRules holds the keywords that apply to mappings.
type ObjectRules struct {
	// Properties keeps schema-declared order.
	Properties []Property
	index      map[string]int
	Required   []string
	Patterns   []PatternProperty
	// Additional is nil when additionalProperties is absent; false compiles
	// to a KindNever node.
	Additional    *Node
	MinProperties *int
	MaxProperties *int
	PropertyNames *Node
	UnknownKeys   UnknownKeys
}

// Property returns the schema of a declared property.
func (o *ObjectRules) Property(name string) (*Node, bool) {
	i, ok := o.index[name]
	if !ok {
		return nil, false
	}
	return o.Properties[i].Node, true
}

// ArrayRules holds the keywords that apply to sequences.
type ArrayRules struct {
	// Items applies to every element; Tuple applies positionally instead.
	Items           *Node
	Tuple           []*Node
	AdditionalItems *Node
	MinItems        *int
	MaxItems        *int
	UniqueItems     bool
	Contains        *Node
}

// StringRules holds the keywords that apply to strings.
type StringRules struct {
	MinLength *int
	MaxLength *int
	Pattern   string
	Re        *regexp.Regexp
	// Format is recorded but not asserted.
	Format string
}

// NumberRules holds the keywords that apply to numbers. The draft-4 boolean
// exclusive bounds are normalised into the numeric form at compile time.
type NumberRules struct {
	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum *float64
	ExclusiveMaximum *float64
	MultipleOf       *float64
}
