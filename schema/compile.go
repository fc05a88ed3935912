package schema

import (
	"math"
	"regexp"

	"github.com/reoring/ccv/value"
)

// Compile turns a resolved schema document into a Node tree. It fails with a
// Malformed SchemaError when a keyword this package understands carries a
// value of the wrong shape or when a string $ref is still present. Keywords
// it does not understand are ignored.
func Compile(doc value.Value) (*Node, error) {
	c := &compiler{patterns: map[string]*regexp.Regexp{}}
	return c.node(doc, value.Root())
}

type compiler struct {
	patterns map[string]*regexp.Regexp
}

func (c *compiler) node(v value.Value, p *value.Path) (*Node, error) {
	switch v.Kind() {
	case value.KindBool:
		if v.AsBool() {
			return &Node{Kind: KindAny, Pointer: p.Pointer()}, nil
		}
		return &Node{Kind: KindNever, Pointer: p.Pointer()}, nil
	case value.KindMapping:
	default:
		return nil, malformed(p.Pointer(), "schema must be an object or a boolean, got %s", v.Kind())
	}

	if ref, ok := v.Get(refKey); ok && ref.Kind() == value.KindString {
		return nil, &SchemaError{Kind: Malformed, Path: p.Pointer(), Ref: ref.AsString(), Message: "unresolved $ref " + ref.AsString()}
	}

	n := &Node{Pointer: p.Pointer()}
	var exclMinFlag, exclMaxFlag bool
	for _, m := range v.Members() {
		kp := p.Field(m.Key)
		var err error
		switch m.Key {
		case "type":
			n.Types, err = c.types(m.Value, kp)
		case "enum":
			if m.Value.Kind() != value.KindSequence {
				err = malformed(kp.Pointer(), "enum must be an array")
				break
			}
			n.Enum = append([]value.Value{}, m.Value.Items()...)
		case "const":
			n.HasConst, n.Const = true, m.Value

		case "properties":
			err = c.properties(n, m.Value, kp)
		case "required":
			n.object().Required, err = stringList(m.Value, kp)
		case "patternProperties":
			err = c.patternProperties(n, m.Value, kp)
		case "additionalProperties":
			n.object().Additional, err = c.node(m.Value, kp)
		case "minProperties":
			n.object().MinProperties, err = count(m.Value, kp)
		case "maxProperties":
			n.object().MaxProperties, err = count(m.Value, kp)
		case "propertyNames":
			n.object().PropertyNames, err = c.node(m.Value, kp)
		case "x-unknown-keys":
			u, ok := ParseUnknownKeys(m.Value.AsString())
			if !ok {
				err = malformed(kp.Pointer(), "x-unknown-keys must be \"ignore\" or \"annotate\"")
				break
			}
			n.object().UnknownKeys = u

		case "items":
			err = c.items(n, m.Value, kp)
		case "additionalItems":
			n.array().AdditionalItems, err = c.node(m.Value, kp)
		case "minItems":
			n.array().MinItems, err = count(m.Value, kp)
		case "maxItems":
			n.array().MaxItems, err = count(m.Value, kp)
		case "uniqueItems":
			if m.Value.Kind() != value.KindBool {
				err = malformed(kp.Pointer(), "uniqueItems must be a boolean")
				break
			}
			n.array().UniqueItems = m.Value.AsBool()
		case "contains":
			n.array().Contains, err = c.node(m.Value, kp)

		case "minLength":
			n.str().MinLength, err = count(m.Value, kp)
		case "maxLength":
			n.str().MaxLength, err = count(m.Value, kp)
		case "pattern":
			if m.Value.Kind() != value.KindString {
				err = malformed(kp.Pointer(), "pattern must be a string")
				break
			}
			n.str().Pattern = m.Value.AsString()
			n.str().Re, err = c.compilePattern(m.Value.AsString(), kp)
		case "format":
			n.str().Format = m.Value.AsString()

		case "minimum":
			n.num().Minimum, err = number(m.Value, kp)
		case "maximum":
			n.num().Maximum, err = number(m.Value, kp)
		case "exclusiveMinimum":
			if m.Value.Kind() == value.KindBool {
				exclMinFlag = m.Value.AsBool()
				break
			}
			n.num().ExclusiveMinimum, err = number(m.Value, kp)
		case "exclusiveMaximum":
			if m.Value.Kind() == value.KindBool {
				exclMaxFlag = m.Value.AsBool()
				break
			}
			n.num().ExclusiveMaximum, err = number(m.Value, kp)
		case "multipleOf":
			n.num().MultipleOf, err = number(m.Value, kp)
			if err == nil && *n.num().MultipleOf <= 0 {
				err = malformed(kp.Pointer(), "multipleOf must be greater than 0")
			}

		case "allOf":
			n.AllOf, err = c.list(m.Value, kp)
		case "anyOf":
			n.AnyOf, err = c.list(m.Value, kp)
		case "oneOf":
			n.OneOf, err = c.list(m.Value, kp)
		case "not":
			n.Not, err = c.node(m.Value, kp)

		case "deprecated":
			n.Deprecated = m.Value.AsBool()
		case "deprecated_version":
			n.DeprecatedVersion = m.Value.AsString()
		case "deprecated_description":
			n.DeprecatedDescription = m.Value.AsString()
		}
		if err != nil {
			return nil, err
		}
	}

	if n.Number != nil {
		if exclMinFlag && n.Number.Minimum != nil {
			n.Number.ExclusiveMinimum, n.Number.Minimum = n.Number.Minimum, nil
		}
		if exclMaxFlag && n.Number.Maximum != nil {
			n.Number.ExclusiveMaximum, n.Number.Maximum = n.Number.Maximum, nil
		}
	}
	n.Kind = kindOf(n)
	return n, nil
}

func kindOf(n *Node) Kind {
	switch bits := popcount(n.Types); {
	case bits > 1:
		return KindMulti
	case bits == 1:
		switch n.Types {
		case TypeNull:
			return KindNull
		case TypeBoolean:
			return KindBoolean
		case TypeObject:
			return KindObject
		case TypeArray:
			return KindArray
		case TypeNumber:
			return KindNumber
		case TypeInteger:
			return KindInteger
		case TypeString:
			return KindString
		}
	}
	if n.Enum != nil || n.HasConst {
		return KindEnum
	}
	if len(n.AllOf)+len(n.AnyOf)+len(n.OneOf) > 0 || n.Not != nil {
		return KindComposite
	}
	return KindAny
}

func popcount(t TypeSet) int {
	n := 0
	for ; t != 0; t &= t - 1 {
		n++
	}
	return n
}

func (n *Node) object() *ObjectRules {
	if n.Object == nil {
		n.Object = &ObjectRules{index: map[string]int{}}
	}
	return n.Object
}

func (n *Node) array() *ArrayRules {
	if n.Array == nil {
		n.Array = &ArrayRules{}
	}
	return n.Array
}

func (n *Node) str() *StringRules {
	if n.String == nil {
		n.String = &StringRules{}
	}
	return n.String
}

func (n *Node) num() *NumberRules {
	if n.Number == nil {
		n.Number = &NumberRules{}
	}
	return n.Number
}

func (c *compiler) types(v value.Value, p *value.Path) (TypeSet, error) {
	switch v.Kind() {
	case value.KindString:
		t, ok := typeByName(v.AsString())
		if !ok {
			return 0, malformed(p.Pointer(), "unknown type %q", v.AsString())
		}
		return t, nil
	case value.KindSequence:
		var set TypeSet
		for i, it := range v.Items() {
			t, ok := typeByName(it.AsString())
			if it.Kind() != value.KindString || !ok {
				return 0, malformed(p.Index(i).Pointer(), "unknown type %s", it)
			}
			set |= t
		}
		if set == 0 {
			return 0, malformed(p.Pointer(), "type list must not be empty")
		}
		return set, nil
	}
	return 0, malformed(p.Pointer(), "type must be a string or an array of strings")
}

func (c *compiler) properties(n *Node, v value.Value, p *value.Path) error {
	if v.Kind() != value.KindMapping {
		return malformed(p.Pointer(), "properties must be an object")
	}
	o := n.object()
	for _, m := range v.Members() {
		child, err := c.node(m.Value, p.Field(m.Key))
		if err != nil {
			return err
		}
		if i, ok := o.index[m.Key]; ok {
			o.Properties[i].Node = child
			continue
		}
		o.index[m.Key] = len(o.Properties)
		o.Properties = append(o.Properties, Property{Name: m.Key, Node: child})
	}
	return nil
}

func (c *compiler) patternProperties(n *Node, v value.Value, p *value.Path) error {
	if v.Kind() != value.KindMapping {
		return malformed(p.Pointer(), "patternProperties must be an object")
	}
	o := n.object()
	for _, m := range v.Members() {
		kp := p.Field(m.Key)
		re, err := c.compilePattern(m.Key, kp)
		if err != nil {
			return err
		}
		child, err := c.node(m.Value, kp)
		if err != nil {
			return err
		}
		o.Patterns = append(o.Patterns, PatternProperty{Pattern: m.Key, Re: re, Node: child})
	}
	return nil
}

func (c *compiler) items(n *Node, v value.Value, p *value.Path) error {
	a := n.array()
	if v.Kind() != value.KindSequence {
		child, err := c.node(v, p)
		a.Items = child
		return err
	}
	tuple, err := c.schemas(v, p)
	if err != nil {
		return err
	}
	a.Tuple = tuple
	if a.Tuple == nil {
		a.Tuple = []*Node{}
	}
	return nil
}

// list compiles allOf/anyOf/oneOf, which must be non-empty arrays.
func (c *compiler) list(v value.Value, p *value.Path) ([]*Node, error) {
	if v.Kind() != value.KindSequence || v.Len() == 0 {
		return nil, malformed(p.Pointer(), "must be a non-empty array of schemas")
	}
	return c.schemas(v, p)
}

func (c *compiler) schemas(v value.Value, p *value.Path) ([]*Node, error) {
	var out []*Node
	for i, it := range v.Items() {
		child, err := c.node(it, p.Index(i))
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

func (c *compiler) compilePattern(pattern string, p *value.Path) (*regexp.Regexp, error) {
	if re, ok := c.patterns[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		se := malformed(p.Pointer(), "invalid pattern %q", pattern)
		se.Err = err
		return nil, se
	}
	c.patterns[pattern] = re
	return re, nil
}

func stringList(v value.Value, p *value.Path) ([]string, error) {
	if v.Kind() != value.KindSequence {
		return nil, malformed(p.Pointer(), "must be an array of strings")
	}
	out := make([]string, 0, v.Len())
	for i, it := range v.Items() {
		if it.Kind() != value.KindString {
			return nil, malformed(p.Index(i).Pointer(), "must be a string")
		}
		out = append(out, it.AsString())
	}
	return out, nil
}

func count(v value.Value, p *value.Path) (*int, error) {
	if v.Kind() != value.KindNumber || !v.IsInteger() || v.AsFloat() < 0 || v.AsFloat() > math.MaxInt32 {
		return nil, malformed(p.Pointer(), "must be a non-negative integer")
	}
	n := int(v.AsFloat())
	return &n, nil
}

func number(v value.Value, p *value.Path) (*float64, error) {
	if v.Kind() != value.KindNumber {
		return nil, malformed(p.Pointer(), "must be a number")
	}
	f := v.AsFloat()
	return &f, nil
}
