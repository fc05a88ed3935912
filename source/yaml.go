package source

import (
	"bytes"
	"errors"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	eng "github.com/reoring/ccv/internal/engine"
	"github.com/reoring/ccv/value"
)

// yamlSource walks a yaml.Node tree and emits engine tokens lazily, so the
// node budget applied by the enforcement layer also bounds alias expansion.
type yamlSource struct {
	payload []byte
	root    *yaml.Node
	started bool
	stack   []yamlFrame

	// memo holds flattened member lists per mapping node so merge chains
	// are computed once.
	memo map[*yaml.Node][]yamlMember
	// mergeBudget bounds the members copied while flattening merge keys.
	// Zero disables the check.
	mergeBudget int
	merged      int
}

type yamlFrame struct {
	kind    containerKind
	items   []*yaml.Node
	members []yamlMember
	i       int
	keyDone bool
}

type yamlMember struct {
	key   string
	keyAt *yaml.Node
	val   *yaml.Node
}

func newYAMLSource(payload []byte, maxNodes int) (eng.TokenSource, error) {
	dec := yaml.NewDecoder(bytes.NewReader(payload))
	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			// empty stream or comments only
			return &yamlSource{payload: payload, mergeBudget: maxNodes}, nil
		}
		return nil, yamlError(payload, err)
	}
	var extra yaml.Node
	switch err := dec.Decode(&extra); {
	case errors.Is(err, io.EOF):
	case err != nil:
		return nil, yamlError(payload, err)
	default:
		return nil, newParseError(FormatYAML, payload, CodeParseError,
			"multiple documents are not supported", value.Position{Line: extra.Line, Column: extra.Column, Offset: -1}, nil)
	}
	root := &doc
	if doc.Kind == yaml.DocumentNode {
		root = nil
		if len(doc.Content) > 0 {
			root = doc.Content[0]
		}
	}
	return &yamlSource{payload: payload, root: root, mergeBudget: maxNodes}, nil
}

var yamlLineRe = regexp.MustCompile(`^yaml: line (\d+): (.*)$`)

func yamlError(payload []byte, err error) error {
	msg := err.Error()
	line := 0
	if m := yamlLineRe.FindStringSubmatch(msg); m != nil {
		line, _ = strconv.Atoi(m[1])
		msg = m[2]
	} else {
		msg = strings.TrimPrefix(msg, "yaml: ")
	}
	return newParseError(FormatYAML, payload, CodeParseError, msg, value.Position{Line: line, Offset: -1}, err)
}

func (s *yamlSource) NextToken() (eng.Token, error) {
	if !s.started {
		s.started = true
		if s.root == nil {
			return eng.Token{Kind: eng.KindNull, Pos: value.Position{Line: 1, Column: 1, Offset: -1}}, nil
		}
		return s.open(s.root)
	}
	n := len(s.stack)
	if n == 0 {
		return eng.Token{}, io.EOF
	}
	top := &s.stack[n-1]
	switch top.kind {
	case kindArray:
		if top.i < len(top.items) {
			node := top.items[top.i]
			top.i++
			return s.open(node)
		}
	case kindObject:
		if top.i < len(top.members) {
			m := top.members[top.i]
			if !top.keyDone {
				top.keyDone = true
				return eng.Token{Kind: eng.KindKey, String: m.key, Pos: nodePos(m.keyAt)}, nil
			}
			top.keyDone = false
			top.i++
			return s.open(m.val)
		}
	}
	s.stack = s.stack[:n-1]
	if top.kind == kindArray {
		return eng.Token{Kind: eng.KindEndArray}, nil
	}
	return eng.Token{Kind: eng.KindEndObject}, nil
}

// open emits the first token of node, pushing a frame for containers.
func (s *yamlSource) open(node *yaml.Node) (eng.Token, error) {
	pos := nodePos(node)
	node = deref(node)
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return eng.Token{Kind: eng.KindNull, Pos: pos}, nil
		}
		return s.open(node.Content[0])
	case yaml.SequenceNode:
		s.stack = append(s.stack, yamlFrame{kind: kindArray, items: node.Content})
		return eng.Token{Kind: eng.KindBeginArray, Pos: pos}, nil
	case yaml.MappingNode:
		members, err := s.members(node)
		if err != nil {
			return eng.Token{}, err
		}
		s.stack = append(s.stack, yamlFrame{kind: kindObject, members: members})
		return eng.Token{Kind: eng.KindBeginObject, Pos: pos}, nil
	case yaml.ScalarNode:
		return scalarToken(node, pos), nil
	}
	return eng.Token{}, &eng.TokenError{Pos: pos, Err: eng.ErrUnexpectedToken}
}

func deref(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func nodePos(n *yaml.Node) value.Position {
	if n == nil {
		return value.NoPosition
	}
	return value.Position{Line: n.Line, Column: n.Column, Offset: -1}
}

// members flattens a mapping node, applying "<<" merge keys. Keys written
// in the mapping itself win over merged keys; among merged mappings the
// first one listed wins. Repeated explicit keys are kept so the enforcement
// layer can report them.
func (s *yamlSource) members(node *yaml.Node) ([]yamlMember, error) {
	if ms, ok := s.memo[node]; ok {
		return ms, nil
	}
	explicit := make(map[string]struct{}, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k := deref(node.Content[i])
		if !isMergeKey(k) && k.Kind == yaml.ScalarNode {
			explicit[k.Value] = struct{}{}
		}
	}
	out := make([]yamlMember, 0, len(node.Content)/2)
	merged := map[string]struct{}{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		k := deref(keyNode)
		v := node.Content[i+1]
		if isMergeKey(k) {
			ms, err := s.mergeSources(v)
			if err != nil {
				return nil, err
			}
			if err := s.chargeMerge(keyNode, len(ms)); err != nil {
				return nil, err
			}
			for _, m := range ms {
				if _, ok := explicit[m.key]; ok {
					continue
				}
				if _, ok := merged[m.key]; ok {
					continue
				}
				merged[m.key] = struct{}{}
				out = append(out, m)
			}
			continue
		}
		if k.Kind != yaml.ScalarNode {
			return nil, &eng.TokenError{Pos: nodePos(keyNode), Err: errors.New("mapping keys must be scalars")}
		}
		out = append(out, yamlMember{key: k.Value, keyAt: keyNode, val: v})
	}
	if s.memo == nil {
		s.memo = map[*yaml.Node][]yamlMember{}
	}
	s.memo[node] = out
	return out, nil
}

// chargeMerge counts n merged members against the node budget.
func (s *yamlSource) chargeMerge(at *yaml.Node, n int) error {
	s.merged += n
	if s.mergeBudget > 0 && s.merged > s.mergeBudget {
		return &eng.IssueError{SimpleIssue: eng.SimpleIssue{
			Code:    eng.CodeMaxNodes,
			Message: "merge keys expand to too many members",
			Pos:     nodePos(at),
		}}
	}
	return nil
}

func isMergeKey(k *yaml.Node) bool {
	return k.Kind == yaml.ScalarNode && k.ShortTag() == "!!merge"
}

// mergeSources returns the members contributed by the value of a merge key:
// a mapping or a sequence of mappings.
func (s *yamlSource) mergeSources(v *yaml.Node) ([]yamlMember, error) {
	v = deref(v)
	switch v.Kind {
	case yaml.MappingNode:
		return s.members(v)
	case yaml.SequenceNode:
		var out []yamlMember
		for _, item := range v.Content {
			item = deref(item)
			if item.Kind != yaml.MappingNode {
				return nil, &eng.TokenError{Pos: nodePos(item), Err: errors.New("merge key expects a mapping or a sequence of mappings")}
			}
			ms, err := s.members(item)
			if err != nil {
				return nil, err
			}
			out = append(out, ms...)
		}
		return out, nil
	}
	return nil, &eng.TokenError{Pos: nodePos(v), Err: errors.New("merge key expects a mapping or a sequence of mappings")}
}

func scalarToken(n *yaml.Node, pos value.Position) eng.Token {
	switch n.ShortTag() {
	case "!!null":
		return eng.Token{Kind: eng.KindNull, Pos: pos}
	case "!!bool":
		switch strings.ToLower(n.Value) {
		case "true":
			return eng.Token{Kind: eng.KindBool, Bool: true, Pos: pos}
		case "false":
			return eng.Token{Kind: eng.KindBool, Bool: false, Pos: pos}
		}
	case "!!int":
		if lit, ok := intLiteral(n.Value); ok {
			return eng.Token{Kind: eng.KindNumber, Number: lit, Pos: pos}
		}
	case "!!float":
		if lit, ok := floatLiteral(n.Value); ok {
			return eng.Token{Kind: eng.KindNumber, Number: lit, Pos: pos}
		}
	}
	return eng.Token{Kind: eng.KindString, String: n.Value, Pos: pos}
}

// intLiteral canonicalises YAML integer spellings (0x, 0o, 0b, underscores)
// into a decimal literal.
func intLiteral(s string) (string, bool) {
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return strconv.FormatInt(i, 10), true
	}
	if u, err := strconv.ParseUint(strings.TrimPrefix(s, "+"), 0, 64); err == nil {
		return strconv.FormatUint(u, 10), true
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, "_", ""), 64); err == nil && !math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64), true
	}
	return "", false
}

func floatLiteral(s string) (string, bool) {
	switch strings.ToLower(strings.TrimPrefix(s, "+")) {
	case ".inf":
		return "+Inf", true
	case "-.inf":
		return "-Inf", true
	case ".nan":
		return "NaN", true
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, "_", ""), 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatFloat(f, 'g', -1, 64), true
}

func (s *yamlSource) Location() int64 { return int64(len(s.payload)) }
