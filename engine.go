package ccv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reoring/ccv/cache"
	"github.com/reoring/ccv/i18n"
	"github.com/reoring/ccv/internal/logctx"
	"github.com/reoring/ccv/schema"
	"github.com/reoring/ccv/source"
	"github.com/reoring/ccv/validator"
)

// ErrNilSource is returned by New when no schema source is given.
var ErrNilSource = errors.New("ccv: nil schema source")

// Engine validates payloads against one resolved schema. It is immutable and
// safe for concurrent use.
type Engine struct {
	name     string
	schema   *schema.Resolved
	opts     options
	settings string
}

// New loads, resolves and compiles the schema from src. A broken schema is
// reported as a *SchemaError.
func New(ctx context.Context, src SchemaSource, opts ...Option) (*Engine, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	o := options{log: logctx.Discard(), tr: i18n.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	// The translator is fixed at New; it is part of the cache key.
	o.validate = append([]validator.Option{validator.WithTranslator(o.tr)}, o.validate...)
	o.settings.Language = i18n.Language(o.tr)
	fp, err := o.settings.fingerprint()
	if err != nil {
		return nil, fmt.Errorf("ccv: options: %w", err)
	}

	data, err := src.Load(ctx)
	if err != nil {
		o.log.ErrorContext(ctx, "schema.load.fail", "source", src.String(), "err", err)
		return nil, fmt.Errorf("ccv: load schema %s: %w", src, err)
	}
	res, err := schema.Load(data)
	if err != nil {
		o.log.ErrorContext(ctx, "schema.load.fail", "source", src.String(), "err", err)
		return nil, fmt.Errorf("ccv: schema %s: %w", src, err)
	}
	o.log.InfoContext(ctx, "schema.load.ok", "source", src.String(), "digest", res.Digest, "bytes", len(data))
	return &Engine{name: src.String(), schema: res, opts: o, settings: fp}, nil
}

// Schema returns the resolved schema.
func (e *Engine) Schema() *schema.Resolved { return e.schema }

// Name returns the name of the schema source.
func (e *Engine) Name() string { return e.name }

// Validate parses payload as f and validates it. A payload that cannot be
// parsed yields a report with one parse_error at the root together with the
// *ParseError. Duplicate keys tolerated by the parser are reported as
// annotations.
func (e *Engine) Validate(ctx context.Context, f Format, payload []byte) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	log := e.opts.log

	var key string
	if e.opts.cache != nil {
		key = cache.Key(e.schema.Digest, e.settings, f, payload)
		r, ok, err := e.opts.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.WarnContext(ctx, "validate.cache.fail", "op", "get", "err", err)
		case ok:
			log.DebugContext(ctx, "validate.cache.hit")
			return r, nil
		}
	}

	res, err := source.Parse(payload, f, e.opts.parse...)
	if err != nil {
		pe, ok := source.AsParseError(err)
		if !ok {
			return Report{}, err
		}
		log.DebugContext(ctx, "validate.parse.fail", "err", pe)
		return e.parseFailure(pe), pe
	}

	r := validator.Validate(res.Value, e.schema.Root, e.opts.validate...)
	if len(res.Warnings) > 0 {
		anns := make([]Diagnostic, 0, len(res.Warnings)+len(r.Annotations))
		for _, w := range res.Warnings {
			anns = append(anns, Diagnostic{Path: w.Path, Code: w.Code, Message: w.Message, Line: w.Pos.Line, Column: w.Pos.Column})
		}
		r.Annotations = append(anns, r.Annotations...)
	}
	log.DebugContext(ctx, "validate.ok", "valid", r.Valid(), "errors", len(r.Errors), "annotations", len(r.Annotations))

	if e.opts.cache != nil {
		if err := e.opts.cache.Set(ctx, key, r); err != nil {
			log.WarnContext(ctx, "validate.cache.fail", "op", "set", "err", err)
		}
	}
	return r, nil
}

func (e *Engine) parseFailure(pe *ParseError) Report {
	d := Diagnostic{
		Path:    "/",
		Code:    validator.CodeParseError,
		Message: e.opts.tr.Message(validator.CodeParseError, map[string]string{"message": pe.Error()}),
		Line:    pe.Line,
		Column:  pe.Column,
	}
	return Report{Errors: []Diagnostic{d}}
}

// LogValue lets an Engine be logged as a group.
func (e *Engine) LogValue() slog.Value {
	return slog.GroupValue(slog.String("schema", e.name), slog.String("digest", e.schema.Digest))
}
