package ccv_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/reoring/ccv"
	"github.com/reoring/ccv/cache/memory"
	"github.com/reoring/ccv/i18n"
	"github.com/reoring/ccv/schema"
	"github.com/reoring/ccv/schemas"
	"github.com/reoring/ccv/source"
	"github.com/reoring/ccv/validator"
)

func newEngine(t *testing.T, src ccv.SchemaSource, opts ...ccv.Option) *ccv.Engine {
	t.Helper()
	e, err := ccv.New(context.Background(), src, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNew_EmbeddedSchemas(t *testing.T) {
	for _, k := range ccv.Kinds {
		e := newEngine(t, ccv.Embedded(k))
		if e.Schema().Root == nil || e.Name() != "embedded:"+k.String() {
			t.Fatalf("%s: unexpected engine %q", k, e.Name())
		}
	}
}

func TestNew_Errors(t *testing.T) {
	ctx := context.Background()
	if _, err := ccv.New(ctx, nil); !errors.Is(err, ccv.ErrNilSource) {
		t.Fatalf("nil source: %v", err)
	}

	cyclic := []byte(`{"$defs": {"a": {"$ref": "#/$defs/b"}, "b": {"$ref": "#/$defs/a"}}, "$ref": "#/$defs/a"}`)
	_, err := ccv.New(ctx, ccv.Bytes("cyclic", cyclic))
	se, ok := ccv.AsSchemaError(err)
	if !ok || se.Kind != schema.CyclicReference {
		t.Fatalf("want CyclicReference, got %v", err)
	}

	if _, err := ccv.New(ctx, ccv.File(filepath.Join(t.TempDir(), "missing.json"))); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file: %v", err)
	}
}

func TestValidate_UnknownTopLevelKey(t *testing.T) {
	e := newEngine(t, ccv.Embedded(ccv.CloudConfig))
	r, err := e.Validate(context.Background(), ccv.FormatYAML, []byte("#cloud-config\nasdfafd: 1\n"))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := json.Marshal(r)
	if string(b) != `{"annotations":[],"errors":[],"is_valid":true}` {
		t.Fatalf("report = %s", b)
	}
}

func TestValidate_ParseFailure(t *testing.T) {
	e := newEngine(t, ccv.Embedded(ccv.CloudConfig))
	r, err := e.Validate(context.Background(), ccv.FormatYAML, []byte("a: b: c\n"))
	pe, ok := ccv.AsParseError(err)
	if !ok {
		t.Fatalf("want *ParseError, got %v", err)
	}
	if r.Valid() || len(r.Errors) != 1 {
		t.Fatalf("want one error, got %+v", r)
	}
	d := r.Errors[0]
	if d.Path != "/" || d.Code != validator.CodeParseError || d.Message != pe.Error() {
		t.Fatalf("unexpected diagnostic %+v (err %q)", d, pe.Error())
	}

	if _, err := e.Validate(context.Background(), ccv.Format("toml"), []byte("a = 1")); err == nil {
		t.Fatalf("expected error for unsupported format")
	} else if _, ok := ccv.AsParseError(err); ok {
		t.Fatalf("unsupported format is not a parse error")
	}
}

func TestValidate_DuplicateKeys(t *testing.T) {
	payload := []byte("hostname: a\nhostname: b\n")

	strict := newEngine(t, ccv.Embedded(ccv.CloudConfig))
	if _, err := strict.Validate(context.Background(), ccv.FormatYAML, payload); err == nil {
		t.Fatalf("duplicates are errors by default")
	}

	lenient := newEngine(t, ccv.Embedded(ccv.CloudConfig), ccv.WithDuplicateKeys(source.DuplicateWarn))
	r, err := lenient.Validate(context.Background(), ccv.FormatYAML, payload)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Valid() || len(r.Annotations) != 1 {
		t.Fatalf("want valid with one annotation, got %+v", r)
	}
	if a := r.Annotations[0]; a.Path != "/hostname" || a.Code != validator.CodeDuplicateKey || a.Line != 2 {
		t.Fatalf("unexpected annotation %+v", a)
	}
}

func TestValidate_Options(t *testing.T) {
	src := ccv.Bytes("inline", []byte(`{"properties": {"a": {"type": "string"}}, "items": {"type": "string"}}`))
	e := newEngine(t, src, ccv.WithUnknownKeys(schema.UnknownAnnotate), ccv.WithMaxErrors(1))

	r, err := e.Validate(context.Background(), ccv.FormatJSON, []byte(`{"a": "x", "b": 1}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Annotations) != 1 || r.Annotations[0].Code != validator.CodeUnknownKey {
		t.Fatalf("annotations = %v", r.Annotations)
	}

	r, err = e.Validate(context.Background(), ccv.FormatJSON, []byte(`[1, 2, 3]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Errors) != 1 || r.Annotations[len(r.Annotations)-1].Code != validator.CodeTruncated {
		t.Fatalf("truncation not applied: %+v", r)
	}

	limited := newEngine(t, src, ccv.WithParseLimits(2, 0, 0))
	if _, err := limited.Validate(context.Background(), ccv.FormatJSON, []byte(`[[[1]]]`)); err == nil {
		t.Fatalf("max depth not enforced")
	}
}

func TestValidate_CanceledContext(t *testing.T) {
	e := newEngine(t, ccv.Embedded(ccv.CloudConfig))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Validate(ctx, ccv.FormatYAML, []byte("{}")); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

type countingCache struct {
	*memory.Cache
	gets, sets atomic.Int32
	fail       bool
}

func (c *countingCache) Get(ctx context.Context, key string) (validator.Report, bool, error) {
	c.gets.Add(1)
	if c.fail {
		return validator.Report{}, false, errors.New("down")
	}
	return c.Cache.Get(ctx, key)
}

func (c *countingCache) Set(ctx context.Context, key string, r validator.Report) error {
	c.sets.Add(1)
	if c.fail {
		return errors.New("down")
	}
	return c.Cache.Set(ctx, key, r)
}

func TestValidate_Cache(t *testing.T) {
	c := &countingCache{Cache: memory.New(16, 0)}
	e := newEngine(t, ccv.Embedded(ccv.CloudConfig), ccv.WithCache(c))
	payload := []byte("users:\n  - shell: /bin/sh\n")

	first, err := e.Validate(context.Background(), ccv.FormatYAML, payload)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Validate(context.Background(), ccv.FormatYAML, payload)
	if err != nil {
		t.Fatal(err)
	}
	if c.sets.Load() != 1 || c.gets.Load() != 2 {
		t.Fatalf("gets=%d sets=%d", c.gets.Load(), c.sets.Load())
	}
	if first.Valid() || second.Valid() || len(first.Errors) != len(second.Errors) {
		t.Fatalf("cached report differs: %+v vs %+v", first, second)
	}

	broken := &countingCache{Cache: memory.New(16, 0), fail: true}
	e = newEngine(t, ccv.Embedded(ccv.CloudConfig), ccv.WithCache(broken))
	if r, err := e.Validate(context.Background(), ccv.FormatYAML, payload); err != nil || r.Valid() {
		t.Fatalf("cache faults must not affect results: %v %+v", err, r)
	}
}

func TestValidate_SharedCacheKeepsSettingsApart(t *testing.T) {
	shared := &countingCache{Cache: memory.New(16, 0)}
	en := newEngine(t, ccv.Embedded(ccv.CloudConfig), ccv.WithCache(shared))
	ja := newEngine(t, ccv.Embedded(ccv.CloudConfig), ccv.WithCache(shared), ccv.WithTranslator(i18n.New("ja")))
	capped := newEngine(t, ccv.Embedded(ccv.CloudConfig), ccv.WithCache(shared), ccv.WithMaxErrors(1))
	payload := []byte("users:\n  - shell: /bin/sh\n")

	enReport, err := en.Validate(context.Background(), ccv.FormatYAML, payload)
	if err != nil {
		t.Fatal(err)
	}
	jaReport, err := ja.Validate(context.Background(), ccv.FormatYAML, payload)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := capped.Validate(context.Background(), ccv.FormatYAML, payload); err != nil {
		t.Fatal(err)
	}
	if shared.sets.Load() != 3 || shared.Len() != 3 {
		t.Fatalf("sets=%d len=%d, want one entry per engine", shared.sets.Load(), shared.Len())
	}
	if enReport.Errors[0].Message == jaReport.Errors[0].Message {
		t.Fatalf("ja engine served the en report: %q", jaReport.Errors[0].Message)
	}
}

func TestValidate_Concurrent(t *testing.T) {
	e := newEngine(t, ccv.Embedded(ccv.NetworkConfig))
	var g errgroup.Group
	for i := 0; i < 32; i++ {
		i := i
		g.Go(func() error {
			doc := fmt.Sprintf("network:\n  version: 1\n  config:\n    - type: physical\n      name: eth%d\n", i)
			r, err := e.Validate(context.Background(), ccv.FormatYAML, []byte(doc))
			if err != nil {
				return err
			}
			if !r.Valid() {
				return fmt.Errorf("doc %d: %v", i, r.Errors)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestSources(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/schema.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(schemas.NetworkConfig)
	}))
	defer srv.Close()

	e := newEngine(t, ccv.URL(srv.URL+"/schema.json", srv.Client()))
	if e.Schema().Digest != newEngine(t, ccv.Embedded(ccv.NetworkConfig)).Schema().Digest {
		t.Fatalf("remote and embedded digests differ")
	}
	if _, err := ccv.New(ctx, ccv.URL(srv.URL+"/missing", srv.Client())); err == nil {
		t.Fatalf("expected error for 404")
	}

	path := filepath.Join(t.TempDir(), "schema.json")
	if err := os.WriteFile(path, schemas.CloudConfig, 0o600); err != nil {
		t.Fatal(err)
	}
	newEngine(t, ccv.File(path))

	cases := map[string]string{
		"":                      "embedded:cloudconfig",
		"https://example.com/s": "https://example.com/s",
		"/etc/ccv/schema.json":  "file:/etc/ccv/schema.json",
	}
	for loc, want := range cases {
		if got := ccv.Locate(ccv.CloudConfig, loc).String(); got != want {
			t.Fatalf("Locate(%q) = %q, want %q", loc, got, want)
		}
	}
}

func TestConfigKind(t *testing.T) {
	for in, want := range map[string]ccv.ConfigKind{
		"cloudconfig":    ccv.CloudConfig,
		"CloudConfig":    ccv.CloudConfig,
		"NETWORKCONFIG":  ccv.NetworkConfig,
		"network-config": ccv.NetworkConfig,
	} {
		got, err := ccv.ParseConfigKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseConfigKind(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ccv.ParseConfigKind("userdata"); err == nil {
		t.Fatalf("expected error")
	}
	var k ccv.ConfigKind
	if err := k.Set("networkconfig"); err != nil || k.String() != "networkconfig" || k.Slug() != "network-config" {
		t.Fatalf("Set: %v %v", k, err)
	}
}
