package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(good, []byte("#cloud-config\nhostname: web-1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		stdin   string
		args    []string
		code    int
		stdout  string
		inError string
	}{
		{
			name:   "valid file",
			args:   []string{"validate", good},
			code:   0,
			stdout: `{"annotations":[],"errors":[],"is_valid":true}` + "\n",
		},
		{
			name:   "invalid from stdin",
			stdin:  "#cloud-config\nhostname: 1\n",
			args:   []string{"validate", "-"},
			code:   1,
			stdout: `"is_valid":false`,
		},
		{
			name:   "json format",
			stdin:  `{"network":{"version":1,"config":[]}}`,
			args:   []string{"validate", "-kind", "network-config", "-format", "json"},
			code:   0,
			stdout: `"is_valid":true`,
		},
		{
			name:   "parse error reported",
			stdin:  "a: [",
			args:   []string{"validate"},
			code:   1,
			stdout: `"code":"parse_error"`,
		},
		{
			name:    "missing file",
			args:    []string{"validate", filepath.Join(dir, "nope.yaml")},
			code:    1,
			inError: "Error reading",
		},
		{
			name:    "bad format",
			args:    []string{"validate", "-format", "toml"},
			code:    2,
			inError: "toml",
		},
		{
			name:    "bad kind",
			args:    []string{"validate", "-kind", "vendor-data"},
			code:    2,
			inError: "vendor-data",
		},
		{
			name:    "missing schema",
			args:    []string{"validate", "-schema", filepath.Join(dir, "missing.json"), good},
			code:    1,
			inError: "Error reading the JSON Schema",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, out, errOut := runCLI(t, tc.stdin, tc.args...)
			if code != tc.code {
				t.Fatalf("exit %d, want %d (stderr %q)", code, tc.code, errOut)
			}
			if !strings.Contains(out, tc.stdout) {
				t.Fatalf("stdout %q does not contain %q", out, tc.stdout)
			}
			if !strings.Contains(errOut, tc.inError) {
				t.Fatalf("stderr %q does not contain %q", errOut, tc.inError)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	code, out, errOut := runCLI(t, "", "resolve", "-kind", "networkconfig")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if strings.Contains(out, `"$ref"`) || strings.Contains(out, `"$defs"`) {
		t.Fatalf("output still holds references:\n%s", out)
	}

	code, out, errOut = runCLI(t, `{"$defs":{"n":{"type":"integer"}},"items":{"$ref":"#/$defs/n"}}`, "resolve", "-")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, `"type": "integer"`) {
		t.Fatalf("reference not inlined:\n%s", out)
	}

	code, out, errOut = runCLI(t, `{"type":"string","pattern":"^<[a-z&]+>$"}`, "resolve", "-")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, `"pattern": "^<[a-z&]+>$"`) {
		t.Fatalf("pattern rewritten:\n%s", out)
	}

	code, _, errOut = runCLI(t, `{"$defs":{"a":{"$ref":"#/$defs/a"}},"items":{"$ref":"#/$defs/a"}}`, "resolve", "-")
	if code != 1 || errOut == "" {
		t.Fatalf("cyclic schema: exit %d stderr %q", code, errOut)
	}
}

func TestUsage(t *testing.T) {
	for _, args := range [][]string{nil, {"lint"}} {
		code, _, errOut := runCLI(t, "", args...)
		if code != 2 || !strings.Contains(errOut, "Usage:") {
			t.Fatalf("%v: exit %d stderr %q", args, code, errOut)
		}
	}
}

func TestValidateHelpListsFormats(t *testing.T) {
	code, _, errOut := runCLI(t, "", "validate", "-h")
	if code != 2 || !strings.Contains(errOut, "payload format: yaml or json") {
		t.Fatalf("exit %d stderr %q", code, errOut)
	}
}

func TestServe_BadConfig(t *testing.T) {
	code, _, errOut := runCLI(t, "", "serve", "-config", filepath.Join(t.TempDir(), "missing.toml"))
	if code != 1 || errOut == "" {
		t.Fatalf("exit %d stderr %q", code, errOut)
	}
}
