package ccv

import (
	"log/slog"

	"github.com/goccy/go-json"

	"github.com/reoring/ccv/cache"
	"github.com/reoring/ccv/i18n"
	"github.com/reoring/ccv/schema"
	"github.com/reoring/ccv/source"
	"github.com/reoring/ccv/validator"
)

type options struct {
	log      *slog.Logger
	cache    cache.Cache
	parse    []source.Option
	validate []validator.Option
	tr       i18n.Translator
	settings settings
}

// settings records the options that change report contents. Its encoding
// is part of every cache key.
type settings struct {
	UnknownKeys string `json:"unknown_keys,omitempty"`
	MaxErrors   int    `json:"max_errors,omitempty"`
	Duplicates  int    `json:"duplicates"`
	MaxDepth    int    `json:"max_depth,omitempty"`
	MaxNodes    int    `json:"max_nodes,omitempty"`
	MaxBytes    int64  `json:"max_bytes,omitempty"`
	Language    string `json:"language"`
}

func (s settings) fingerprint() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the logger for engine events. The default discards them.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithCache enables report caching. Cache faults are logged and otherwise
// ignored.
func WithCache(c cache.Cache) Option { return func(o *options) { o.cache = c } }

// WithUnknownKeys sets the unknown-key policy for schema objects that do not
// declare x-unknown-keys.
func WithUnknownKeys(p schema.UnknownKeys) Option {
	return func(o *options) {
		if p != schema.UnknownInherit {
			o.settings.UnknownKeys = p.String()
		}
		o.validate = append(o.validate, validator.WithUnknownKeys(p))
	}
}

// WithMaxErrors caps the errors kept per report.
func WithMaxErrors(n int) Option {
	return func(o *options) {
		o.settings.MaxErrors = max(n, 0)
		o.validate = append(o.validate, validator.WithMaxErrors(n))
	}
}

// WithTranslator renders diagnostic messages with tr.
func WithTranslator(tr i18n.Translator) Option {
	return func(o *options) {
		if tr != nil {
			o.tr = tr
			o.validate = append(o.validate, validator.WithTranslator(tr))
		}
	}
}

// WithDuplicateKeys sets how duplicate mapping keys in payloads are treated.
func WithDuplicateKeys(p source.DuplicatePolicy) Option {
	return func(o *options) {
		o.settings.Duplicates = int(p)
		o.parse = append(o.parse, source.WithDuplicateKeys(p))
	}
}

// WithParseLimits bounds payload nesting depth, node count and size. Zero
// keeps the parser default for that limit.
func WithParseLimits(maxDepth, maxNodes int, maxBytes int64) Option {
	return func(o *options) {
		if maxDepth > 0 {
			o.settings.MaxDepth = maxDepth
			o.parse = append(o.parse, source.WithMaxDepth(maxDepth))
		}
		if maxNodes > 0 {
			o.settings.MaxNodes = maxNodes
			o.parse = append(o.parse, source.WithMaxNodes(maxNodes))
		}
		if maxBytes > 0 {
			o.settings.MaxBytes = maxBytes
			o.parse = append(o.parse, source.WithMaxBytes(maxBytes))
		}
	}
}
