package schema

import (
	"strings"

	"github.com/reoring/ccv/value"
)

const (
	defsKey   = "$defs"
	refKey    = "$ref"
	refPrefix = "#/$defs/"
)

// DefinitionTable maps definition names from the root $defs to their raw,
// unresolved schemas.
type DefinitionTable map[string]value.Value

// Definitions extracts the root $defs of doc. A document without $defs has
// an empty table.
func Definitions(doc value.Value) (DefinitionTable, error) {
	defs := DefinitionTable{}
	raw, ok := doc.Get(defsKey)
	if !ok {
		return defs, nil
	}
	if raw.Kind() != value.KindMapping {
		return nil, malformed("/"+defsKey, "$defs must be an object, got %s", raw.Kind())
	}
	for _, m := range raw.Members() {
		defs[m.Key] = m.Value
	}
	return defs, nil
}

// Resolve inlines every local "#/$defs/<name>" reference of doc and drops the
// root $defs. A mapping carrying a string $ref is replaced as a whole by the
// resolved definition; its sibling keys are discarded. Other mappings and
// sequences are rebuilt with their order intact and scalars pass through.
//
// Resolve is idempotent and is the identity on documents that use neither
// $defs nor $ref.
func Resolve(doc value.Value) (value.Value, error) {
	defs, err := Definitions(doc)
	if err != nil {
		return value.Value{}, err
	}
	r := &resolver{defs: defs, memo: map[string]value.Value{}, active: map[string]int{}}
	return r.walk(doc.Without(defsKey), value.Root())
}

type resolver struct {
	defs DefinitionTable
	// memo holds fully resolved definitions so shared ones are expanded once.
	memo map[string]value.Value
	// active is the expansion stack; values index into chain.
	active map[string]int
	chain  []string
}

func (r *resolver) walk(v value.Value, path *value.Path) (value.Value, error) {
	switch v.Kind() {
	case value.KindMapping:
		if ref, ok := v.Get(refKey); ok && ref.Kind() == value.KindString {
			return r.expand(ref.AsString(), path)
		}
		members := v.Members()
		out := make([]value.Member, len(members))
		for i, m := range members {
			rv, err := r.walk(m.Value, path.Field(m.Key))
			if err != nil {
				return value.Value{}, err
			}
			out[i] = value.Member{Key: m.Key, KeyPos: m.KeyPos, Value: rv}
		}
		return value.Mapping(out, v.Pos()), nil
	case value.KindSequence:
		items := v.Items()
		out := make([]value.Value, len(items))
		for i, it := range items {
			rv, err := r.walk(it, path.Index(i))
			if err != nil {
				return value.Value{}, err
			}
			out[i] = rv
		}
		return value.Sequence(out, v.Pos()), nil
	default:
		return v, nil
	}
}

// expand resolves one reference. The part after "#/$defs/" names a
// definition; further pointer tokens address a node inside it.
func (r *resolver) expand(ref string, path *value.Path) (value.Value, error) {
	if !strings.HasPrefix(ref, refPrefix) || len(ref) == len(refPrefix) {
		return value.Value{}, &SchemaError{Kind: InvalidReference, Path: path.Pointer(), Ref: ref,
			Message: "only local references of the form #/$defs/<name> are supported"}
	}
	if done, ok := r.memo[ref]; ok {
		return done, nil
	}
	if start, ok := r.active[ref]; ok {
		chain := append(append([]string{}, r.chain[start:]...), ref)
		return value.Value{}, &SchemaError{Kind: CyclicReference, Path: path.Pointer(), Ref: ref, Chain: chain}
	}

	tokens := value.SplitPointer("/" + strings.TrimPrefix(ref, refPrefix))
	target, ok := r.defs[tokens[0]]
	if ok && len(tokens) > 1 {
		target, ok = target.At("/" + joinTokens(tokens[1:]))
	}
	if !ok {
		return value.Value{}, &SchemaError{Kind: DanglingReference, Path: path.Pointer(), Ref: ref}
	}

	r.active[ref] = len(r.chain)
	r.chain = append(r.chain, ref)
	base := value.Root().Field(defsKey)
	for _, tok := range tokens {
		base = base.Field(tok)
	}
	out, err := r.walk(target, base)
	r.chain = r.chain[:len(r.chain)-1]
	delete(r.active, ref)
	if err != nil {
		return value.Value{}, err
	}
	r.memo[ref] = out
	return out, nil
}

func joinTokens(tokens []string) string {
	esc := make([]string, len(tokens))
	for i, t := range tokens {
		esc[i] = value.EscapeToken(t)
	}
	return strings.Join(esc, "/")
}
