package source_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/reoring/ccv/source"
	"github.com/reoring/ccv/value"
)

func mustParse(t *testing.T, payload string, f source.Format, opts ...source.Option) source.Result {
	t.Helper()
	res, err := source.Parse([]byte(payload), f, opts...)
	if err != nil {
		t.Fatalf("Parse(%s): %v", f, err)
	}
	return res
}

func encode(t *testing.T, v value.Value) string {
	t.Helper()
	b, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	return string(b)
}

func TestParse_YAMLAndJSONAgree(t *testing.T) {
	y := "#cloud-config\nhostname: box\nusers:\n  - name: ubuntu\n    sudo: true\n    uid: 1000\npackages: [git, curl]\n"
	js := `{"hostname":"box","users":[{"name":"ubuntu","sudo":true,"uid":1000}],"packages":["git","curl"]}`

	yv := mustParse(t, y, source.FormatYAML).Value
	jv := mustParse(t, js, source.FormatJSON).Value
	if !value.Equal(yv, jv) {
		t.Fatalf("yaml and json trees differ:\n%s\n%s", encode(t, yv), encode(t, jv))
	}
	if got := encode(t, yv); got != js {
		t.Fatalf("yaml key order not preserved: %s", got)
	}
}

func TestParse_CloudConfigHeaderOnly(t *testing.T) {
	res := mustParse(t, "#cloud-config\n", source.FormatYAML)
	if !res.Value.IsNull() {
		t.Fatalf("expected null for comment-only document, got %s", res.Value)
	}
	res = mustParse(t, "", source.FormatYAML)
	if !res.Value.IsNull() {
		t.Fatalf("expected null for empty document, got %s", res.Value)
	}
}

func TestParse_YAMLScalars(t *testing.T) {
	res := mustParse(t, "a: 0x1F\nb: 1.50\nc: ~\nd: \"1\"\ne: yes\nf: !!str 12\ng: false\n", source.FormatYAML)
	want := `{"a":31,"b":1.5,"c":null,"d":"1","e":"yes","f":"12","g":false}`
	if got := encode(t, res.Value); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestParse_YAMLPositions(t *testing.T) {
	res := mustParse(t, "#cloud-config\nusers:\n  - name: a\n", source.FormatYAML)
	name, ok := res.Value.At("/users/0/name")
	if !ok {
		t.Fatalf("missing /users/0/name")
	}
	if p := name.Pos(); p.Line != 3 || p.Column != 11 {
		t.Fatalf("unexpected position %+v", p)
	}
	m := res.Value.Members()
	if m[0].KeyPos.Line != 2 || m[0].KeyPos.Column != 1 {
		t.Fatalf("unexpected key position %+v", m[0].KeyPos)
	}
}

func TestParse_YAMLAliasesAndMerge(t *testing.T) {
	y := `base: &base
  shell: /bin/bash
  groups: [adm]
users:
  - <<: *base
    name: a
  - <<: *base
    name: b
    shell: /bin/sh
`
	res := mustParse(t, y, source.FormatYAML)
	u0, _ := res.Value.At("/users/0")
	if got := encode(t, u0); got != `{"shell":"/bin/bash","groups":["adm"],"name":"a"}` {
		t.Fatalf("merge not applied: %s", got)
	}
	shell, _ := res.Value.At("/users/1/shell")
	if shell.AsString() != "/bin/sh" {
		t.Fatalf("explicit key must override merged key, got %s", shell)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("override of merged key is not a duplicate: %+v", res.Warnings)
	}
}

func TestParse_DuplicateKeys(t *testing.T) {
	cases := []struct {
		name   string
		format source.Format
		input  string
	}{
		{"yaml", source.FormatYAML, "a: 1\nb: 2\na: 3\n"},
		{"json", source.FormatJSON, `{"a":1,"b":2,"a":3}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := source.Parse([]byte(tc.input), tc.format)
			pe, ok := source.AsParseError(err)
			if !ok {
				t.Fatalf("expected ParseError, got %T %v", err, err)
			}
			if pe.Code != "duplicate_key" || pe.Path != "/a" || pe.Line == 0 {
				t.Fatalf("unexpected parse error %+v", pe)
			}

			res, err := source.Parse([]byte(tc.input), tc.format, source.WithDuplicateKeys(source.DuplicateWarn))
			if err != nil {
				t.Fatalf("warn policy should not fail: %v", err)
			}
			if len(res.Warnings) != 1 || res.Warnings[0].Path != "/a" {
				t.Fatalf("expected one warning at /a, got %+v", res.Warnings)
			}
			if got := encode(t, res.Value); got != `{"a":3,"b":2}` {
				t.Fatalf("last value should win in first slot: %s", got)
			}

			res, err = source.Parse([]byte(tc.input), tc.format, source.WithDuplicateKeys(source.DuplicateIgnore))
			if err != nil || len(res.Warnings) != 0 {
				t.Fatalf("ignore policy: err=%v warnings=%v", err, res.Warnings)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	cases := []struct {
		name   string
		format source.Format
		input  string
		prefix string
	}{
		{"yaml nested mapping value", source.FormatYAML, "a: b: c\n", "invalid yaml: "},
		{"yaml unclosed flow", source.FormatYAML, "a: [1, 2\n", "invalid yaml: "},
		{"yaml multi document", source.FormatYAML, "a: 1\n---\nb: 2\n", "invalid yaml: multiple documents"},
		{"json syntax", source.FormatJSON, `{"a": }`, "invalid json: "},
		{"json trailing", source.FormatJSON, `{"a": 1} {"b": 2}`, "invalid json: "},
		{"json empty", source.FormatJSON, "  ", "invalid json: "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := source.Parse([]byte(tc.input), tc.format)
			if err == nil {
				t.Fatalf("expected error")
			}
			var pe *source.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T %v", err, err)
			}
			if pe.Format != tc.format {
				t.Fatalf("format = %q", pe.Format)
			}
			if !strings.HasPrefix(err.Error(), tc.prefix) {
				t.Fatalf("error %q does not start with %q", err, tc.prefix)
			}
		})
	}
}

func TestParse_Limits(t *testing.T) {
	deep := strings.Repeat("[", 10) + strings.Repeat("]", 10)
	_, err := source.Parse([]byte(deep), source.FormatJSON, source.WithMaxDepth(5))
	pe, ok := source.AsParseError(err)
	if !ok || pe.Code != "max_depth" {
		t.Fatalf("expected max_depth parse error, got %v", err)
	}

	bomb := "a: &a [x, x, x, x]\nb: &b [*a, *a, *a, *a]\nc: &c [*b, *b, *b, *b]\nd: [*c, *c, *c, *c]\n"
	_, err = source.Parse([]byte(bomb), source.FormatYAML, source.WithMaxNodes(100))
	pe, ok = source.AsParseError(err)
	if !ok || pe.Code != "max_nodes" {
		t.Fatalf("expected max_nodes parse error, got %v", err)
	}
	if _, err := source.Parse([]byte(bomb), source.FormatYAML); err != nil {
		t.Fatalf("default budget should accept small expansion: %v", err)
	}

	// Each level merges ten aliases of the previous one.
	var chain strings.Builder
	chain.WriteString("l0: &l0 {x: 1}\n")
	const levels = 24
	for i := 1; i <= levels; i++ {
		prev := fmt.Sprintf("*l%d", i-1)
		fmt.Fprintf(&chain, "l%d: &l%d {<<: [%s]}\n", i, i, strings.TrimSuffix(strings.Repeat(prev+", ", 10), ", "))
	}
	res, err := source.Parse([]byte(chain.String()), source.FormatYAML)
	if err != nil {
		t.Fatalf("merge chain: %v", err)
	}
	if x, ok := res.Value.At(fmt.Sprintf("/l%d/x", levels)); !ok || x.Literal() != "1" {
		t.Fatalf("merge chain lost x: %v %v", x, ok)
	}

	wide := "base: &base {a: 1, b: 2, c: 3, d: 4, e: 5}\nm: {<<: [*base, *base, *base, *base, *base]}\n"
	_, err = source.Parse([]byte(wide), source.FormatYAML, source.WithMaxNodes(20))
	pe, ok = source.AsParseError(err)
	if !ok || pe.Code != "max_nodes" {
		t.Fatalf("expected max_nodes parse error for merges, got %v", err)
	}

	_, err = source.Parse([]byte(`{"a":"0123456789"}`), source.FormatJSON, source.WithMaxBytes(4))
	pe, ok = source.AsParseError(err)
	if !ok || pe.Code != "truncated" {
		t.Fatalf("expected truncated parse error, got %v", err)
	}
}

func TestParse_JSONNumbersKeepLiteral(t *testing.T) {
	res := mustParse(t, `{"n": 1.50, "big": 12345678901234567890}`, source.FormatJSON)
	n, _ := res.Value.Get("n")
	if n.Literal() != "1.50" || n.AsFloat() != 1.5 {
		t.Fatalf("unexpected number %q %v", n.Literal(), n.AsFloat())
	}
	big, _ := res.Value.Get("big")
	if !big.IsInteger() {
		t.Fatalf("big integer should stay integral")
	}
}

func TestParse_JSONPositions(t *testing.T) {
	res := mustParse(t, "{\n  \"a\": {\n    \"b\": true\n  }\n}", source.FormatJSON)
	b, _ := res.Value.At("/a/b")
	if p := b.Pos(); p.Line != 3 {
		t.Fatalf("unexpected position %+v", p)
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"yaml", "json"} {
		if f, err := source.ParseFormat(s); err != nil || string(f) != s {
			t.Fatalf("ParseFormat(%q) = %q, %v", s, f, err)
		}
	}
	for _, s := range []string{"", "toml", "YAML"} {
		if _, err := source.ParseFormat(s); err == nil {
			t.Fatalf("ParseFormat(%q) should fail", s)
		}
	}
	if _, err := source.Parse([]byte("a"), source.Format("toml")); err == nil {
		t.Fatalf("unsupported format should fail")
	}
}
