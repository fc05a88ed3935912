package logctx_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/reoring/ccv/internal/logctx"
)

func TestHandler_AddsRequestGroup(t *testing.T) {
	var buf bytes.Buffer
	log, err := logctx.New(&buf, "json", "info")
	if err != nil {
		t.Fatal(err)
	}
	ctx := logctx.WithRequestData(context.Background(), &logctx.RequestData{RequestID: "r-1", Method: "POST", Path: "/v1/cloud-config/validate"})
	ctx = logctx.WithValidationData(ctx, &logctx.ValidationData{Kind: "cloudconfig", Format: "yaml", Bytes: 12})
	log.With("component", "test").InfoContext(ctx, "validate.ok")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	req, _ := rec["req"].(map[string]any)
	if req["id"] != "r-1" || req["method"] != "POST" {
		t.Fatalf("req group = %v", rec["req"])
	}
	val, _ := rec["validate"].(map[string]any)
	if val["kind"] != "cloudconfig" || val["bytes"] != float64(12) {
		t.Fatalf("validate group = %v", rec["validate"])
	}
	if rec["component"] != "test" {
		t.Fatalf("WithAttrs lost the wrapper: %v", rec)
	}
	if logctx.RequestID(ctx) != "r-1" {
		t.Fatalf("RequestID = %q", logctx.RequestID(ctx))
	}
}

func TestNew_Options(t *testing.T) {
	var buf bytes.Buffer
	log, err := logctx.New(&buf, "text", "warn")
	if err != nil {
		t.Fatal(err)
	}
	log.Info("dropped")
	log.Warn("kept")
	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Fatalf("level filtering failed: %q", buf.String())
	}
	if _, err := logctx.New(&buf, "xml", "info"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if _, err := logctx.New(&buf, "json", "loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
