// Package validator checks a value tree against a compiled schema and
// produces a path-addressed Report.
//
// Validation is exhaustive and deterministic: diagnostics come out in
// pre-order, with the checks of a node before those of its children,
// declared properties in schema order, remaining keys in document order and
// sequence elements by index.
package validator

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/reoring/ccv/i18n"
	"github.com/reoring/ccv/schema"
	"github.com/reoring/ccv/value"
)

// Validate checks v against root. It never fails: every violation becomes
// an entry of the returned Report. root is only read, so one compiled schema
// may serve concurrent calls.
func Validate(v value.Value, root *schema.Node, opts ...Option) Report {
	o := options{unknownKeys: schema.UnknownIgnore, tr: i18n.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	w := &walker{opts: o}
	var s sink
	w.node(v, root, value.Root(), &s)

	r := Report{Errors: s.errs, Annotations: s.anns}
	if o.maxErrors > 0 && len(r.Errors) > o.maxErrors {
		r.Errors = r.Errors[:o.maxErrors:o.maxErrors]
		r.Annotations = append(r.Annotations, Diagnostic{
			Path:    "/",
			Code:    CodeTruncated,
			Message: o.tr.Message(CodeTruncated, map[string]string{"limit": strconv.Itoa(o.maxErrors)}),
		})
	}
	return r
}

// sink collects diagnostics for one evaluation scope. Composite keywords
// evaluate their branches into separate sinks.
type sink struct {
	errs []Diagnostic
	anns []Diagnostic
}

func (s *sink) ok() bool { return len(s.errs) == 0 }

type walker struct {
	opts options
}

func (w *walker) diag(path *value.Path, pos value.Position, code, keyword string, data map[string]string) Diagnostic {
	d := Diagnostic{
		Path:    path.Pointer(),
		Code:    code,
		Keyword: keyword,
		Message: w.opts.tr.Message(code, data),
	}
	if pos.Line > 0 {
		d.Line, d.Column = pos.Line, pos.Column
	}
	return d
}

func (w *walker) fail(s *sink, v value.Value, path *value.Path, code, keyword string, data map[string]string) {
	s.errs = append(s.errs, w.diag(path, v.Pos(), code, keyword, data))
}

func (w *walker) node(v value.Value, n *schema.Node, path *value.Path, s *sink) {
	if n == nil {
		return
	}
	if n.Kind == schema.KindNever {
		w.fail(s, v, path, CodeNotAllowed, "", nil)
		return
	}
	if n.Deprecated {
		s.anns = append(s.anns, w.diag(path, v.Pos(), CodeDeprecated, "deprecated", deprecationData(n)))
	}
	if n.Types != 0 && !n.Types.Accepts(v) {
		w.fail(s, v, path, CodeInvalidType, "type", map[string]string{
			"expected": strings.Join(n.Types.Names(), " or "),
			"got":      typeName(v),
		})
		return
	}
	if n.Enum != nil && !containsEqual(n.Enum, v) {
		w.fail(s, v, path, CodeInvalidEnum, "enum", map[string]string{
			"allowed": listValues(n.Enum),
			"got":     v.String(),
		})
	}
	if n.HasConst && !value.Equal(n.Const, v) {
		w.fail(s, v, path, CodeConst, "const", map[string]string{"expected": n.Const.String(), "got": v.String()})
	}

	switch v.Kind() {
	case value.KindString:
		w.stringRules(v, n.String, path, s)
	case value.KindNumber:
		w.numberRules(v, n.Number, path, s)
	case value.KindMapping:
		w.objectOwn(v, n.Object, path, s)
	case value.KindSequence:
		w.arrayOwn(v, n.Array, path, s)
	}

	w.composites(v, n, path, s)

	switch v.Kind() {
	case value.KindMapping:
		w.objectChildren(v, n.Object, path, s)
	case value.KindSequence:
		w.arrayChildren(v, n.Array, path, s)
	}
}

func deprecationData(n *schema.Node) map[string]string {
	data := map[string]string{"since": "", "details": ""}
	if n.DeprecatedVersion != "" {
		data["since"] = " since " + n.DeprecatedVersion
	}
	if n.DeprecatedDescription != "" {
		data["details"] = ": " + n.DeprecatedDescription
	}
	return data
}

func typeName(v value.Value) string {
	if v.Kind() == value.KindNumber && v.IsInteger() {
		return "integer"
	}
	return v.Kind().String()
}

func containsEqual(list []value.Value, v value.Value) bool {
	for _, c := range list {
		if value.Equal(c, v) {
			return true
		}
	}
	return false
}

func listValues(list []value.Value) string {
	parts := make([]string, len(list))
	for i, c := range list {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

func (w *walker) stringRules(v value.Value, r *schema.StringRules, path *value.Path, s *sink) {
	if r == nil {
		return
	}
	str := v.AsString()
	if r.MinLength != nil || r.MaxLength != nil {
		n := utf8.RuneCountInString(str)
		if r.MinLength != nil && n < *r.MinLength {
			w.fail(s, v, path, CodeTooShort, "minLength", lengthData(*r.MinLength, n, "characters"))
		}
		if r.MaxLength != nil && n > *r.MaxLength {
			w.fail(s, v, path, CodeTooLong, "maxLength", lengthData(*r.MaxLength, n, "characters"))
		}
	}
	if r.Re != nil && !r.Re.MatchString(str) {
		w.fail(s, v, path, CodePattern, "pattern", map[string]string{"got": strconv.Quote(str), "pattern": r.Pattern})
	}
}

func lengthData(limit, got int, unit string) map[string]string {
	return map[string]string{"limit": strconv.Itoa(limit), "got": strconv.Itoa(got), "unit": unit}
}

func (w *walker) numberRules(v value.Value, r *schema.NumberRules, path *value.Path, s *sink) {
	if r == nil {
		return
	}
	f := v.AsFloat()
	bound := func(code, keyword, cmp string, limit float64) {
		w.fail(s, v, path, code, keyword, map[string]string{"cmp": cmp, "limit": formatFloat(limit), "got": v.Literal()})
	}
	if r.Minimum != nil && f < *r.Minimum {
		bound(CodeTooSmall, "minimum", ">=", *r.Minimum)
	}
	if r.ExclusiveMinimum != nil && f <= *r.ExclusiveMinimum {
		bound(CodeTooSmall, "exclusiveMinimum", ">", *r.ExclusiveMinimum)
	}
	if r.Maximum != nil && f > *r.Maximum {
		bound(CodeTooBig, "maximum", "<=", *r.Maximum)
	}
	if r.ExclusiveMaximum != nil && f >= *r.ExclusiveMaximum {
		bound(CodeTooBig, "exclusiveMaximum", "<", *r.ExclusiveMaximum)
	}
	if r.MultipleOf != nil && !isMultiple(f, *r.MultipleOf) {
		w.fail(s, v, path, CodeMultipleOf, "multipleOf", map[string]string{"got": v.Literal(), "divisor": formatFloat(*r.MultipleOf)})
	}
}

func isMultiple(f, d float64) bool {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return false
	}
	q := f / d
	return math.Abs(q-math.Round(q)) <= 1e-9*math.Max(1, math.Abs(q))
}

func (w *walker) objectOwn(v value.Value, r *schema.ObjectRules, path *value.Path, s *sink) {
	if r == nil {
		return
	}
	for _, key := range r.Required {
		if !v.Has(key) {
			w.fail(s, v, path, CodeRequired, "required", map[string]string{"key": key})
		}
	}
	if r.MinProperties != nil && v.Len() < *r.MinProperties {
		w.fail(s, v, path, CodeTooShort, "minProperties", lengthData(*r.MinProperties, v.Len(), "properties"))
	}
	if r.MaxProperties != nil && v.Len() > *r.MaxProperties {
		w.fail(s, v, path, CodeTooLong, "maxProperties", lengthData(*r.MaxProperties, v.Len(), "properties"))
	}
	if r.PropertyNames != nil {
		for _, m := range v.Members() {
			var sub sink
			w.node(value.String(m.Key, m.KeyPos), r.PropertyNames, path.Field(m.Key), &sub)
			if !sub.ok() {
				s.errs = append(s.errs, w.diag(path.Field(m.Key), m.KeyPos, CodePropertyName, "propertyNames", map[string]string{"key": m.Key}))
			}
		}
	}
}

func (w *walker) objectChildren(v value.Value, r *schema.ObjectRules, path *value.Path, s *sink) {
	if r == nil {
		return
	}
	for _, p := range r.Properties {
		if child, ok := v.Get(p.Name); ok {
			w.node(child, p.Node, path.Field(p.Name), s)
		}
	}
	policy := r.UnknownKeys
	if policy == schema.UnknownInherit {
		policy = w.opts.unknownKeys
	}
	describesKeys := len(r.Properties) > 0 || len(r.Patterns) > 0
	for _, m := range v.Members() {
		if _, declared := r.Property(m.Key); declared {
			continue
		}
		kp := path.Field(m.Key)
		matched := false
		for _, pp := range r.Patterns {
			if pp.Re.MatchString(m.Key) {
				matched = true
				w.node(m.Value, pp.Node, kp, s)
			}
		}
		switch {
		case matched:
		case r.Additional != nil && r.Additional.Kind == schema.KindNever:
			s.errs = append(s.errs, w.diag(kp, m.KeyPos, CodeAdditionalProperty, "additionalProperties", map[string]string{"key": m.Key}))
		case r.Additional != nil:
			w.node(m.Value, r.Additional, kp, s)
		case describesKeys && policy == schema.UnknownAnnotate:
			s.anns = append(s.anns, w.diag(kp, m.KeyPos, CodeUnknownKey, "", map[string]string{"key": m.Key}))
		}
	}
}

func (w *walker) arrayOwn(v value.Value, r *schema.ArrayRules, path *value.Path, s *sink) {
	if r == nil {
		return
	}
	n := v.Len()
	if r.MinItems != nil && n < *r.MinItems {
		w.fail(s, v, path, CodeTooShort, "minItems", lengthData(*r.MinItems, n, "items"))
	}
	if r.MaxItems != nil && n > *r.MaxItems {
		w.fail(s, v, path, CodeTooLong, "maxItems", lengthData(*r.MaxItems, n, "items"))
	}
	if r.UniqueItems {
		items := v.Items()
	outer:
		for j := 1; j < len(items); j++ {
			for i := 0; i < j; i++ {
				if value.Equal(items[i], items[j]) {
					w.fail(s, v, path, CodeUniqueItems, "uniqueItems", map[string]string{"first": strconv.Itoa(i), "second": strconv.Itoa(j)})
					break outer
				}
			}
		}
	}
	if r.Contains != nil {
		found := false
		for i, it := range v.Items() {
			var sub sink
			w.node(it, r.Contains, path.Index(i), &sub)
			if sub.ok() {
				found = true
				break
			}
		}
		if !found {
			w.fail(s, v, path, CodeContains, "contains", nil)
		}
	}
}

func (w *walker) arrayChildren(v value.Value, r *schema.ArrayRules, path *value.Path, s *sink) {
	if r == nil {
		return
	}
	items := v.Items()
	if r.Tuple == nil {
		if r.Items != nil {
			for i, it := range items {
				w.node(it, r.Items, path.Index(i), s)
			}
		}
		return
	}
	for i, it := range items {
		switch {
		case i < len(r.Tuple):
			w.node(it, r.Tuple[i], path.Index(i), s)
		case r.AdditionalItems == nil:
			return
		case r.AdditionalItems.Kind == schema.KindNever:
			w.fail(s, v, path, CodeTooLong, "additionalItems", lengthData(len(r.Tuple), len(items), "items"))
			return
		default:
			w.node(it, r.AdditionalItems, path.Index(i), s)
		}
	}
}

func (w *walker) composites(v value.Value, n *schema.Node, path *value.Path, s *sink) {
	for _, b := range n.AllOf {
		w.node(v, b, path, s)
	}
	if len(n.AnyOf) > 0 {
		branches := w.branches(v, n.AnyOf, path)
		matched := 0
		for _, b := range branches {
			if b.ok() {
				matched++
				s.anns = append(s.anns, b.anns...)
			}
		}
		if matched == 0 {
			w.fail(s, v, path, CodeUnionNone, "anyOf", unionData(branches, path))
		}
	}
	if len(n.OneOf) > 0 {
		branches := w.branches(v, n.OneOf, path)
		var idx []string
		for i, b := range branches {
			if b.ok() {
				idx = append(idx, strconv.Itoa(i))
			}
		}
		switch len(idx) {
		case 0:
			w.fail(s, v, path, CodeUnionNone, "oneOf", unionData(branches, path))
		case 1:
			i, _ := strconv.Atoi(idx[0])
			s.anns = append(s.anns, branches[i].anns...)
		default:
			w.fail(s, v, path, CodeUnionAmbiguous, "oneOf", map[string]string{
				"count":   strconv.Itoa(len(idx)),
				"matched": strings.Join(idx, ", "),
			})
		}
	}
	if n.Not != nil {
		var sub sink
		w.node(v, n.Not, path, &sub)
		if sub.ok() {
			w.fail(s, v, path, CodeNot, "not", nil)
		}
	}
}

func (w *walker) branches(v value.Value, nodes []*schema.Node, path *value.Path) []sink {
	out := make([]sink, len(nodes))
	for i, b := range nodes {
		w.node(v, b, path, &out[i])
	}
	return out
}

// unionData summarises why each alternative failed using its first error.
func unionData(branches []sink, path *value.Path) map[string]string {
	parts := make([]string, len(branches))
	here := path.Pointer()
	for i, b := range branches {
		first := b.errs[0]
		if first.Path != here {
			parts[i] = "#" + strconv.Itoa(i) + " " + first.Path + ": " + first.Message
		} else {
			parts[i] = "#" + strconv.Itoa(i) + ": " + first.Message
		}
	}
	return map[string]string{"count": strconv.Itoa(len(branches)), "details": strings.Join(parts, "; ")}
}
