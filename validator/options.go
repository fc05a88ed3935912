package validator

import (
	"github.com/reoring/ccv/i18n"
	"github.com/reoring/ccv/schema"
)

type options struct {
	unknownKeys schema.UnknownKeys
	maxErrors   int
	tr          i18n.Translator
}

// Option configures Validate.
type Option func(*options)

// WithUnknownKeys sets the policy for undeclared object keys on schema nodes
// that do not carry x-unknown-keys. The default is schema.UnknownIgnore.
func WithUnknownKeys(p schema.UnknownKeys) Option {
	return func(o *options) {
		if p != schema.UnknownInherit {
			o.unknownKeys = p
		}
	}
}

// WithMaxErrors keeps at most n errors and appends a truncated annotation
// when more were found. n <= 0 keeps every error.
func WithMaxErrors(n int) Option { return func(o *options) { o.maxErrors = n } }

// WithTranslator renders messages with tr instead of the default Translator.
func WithTranslator(tr i18n.Translator) Option {
	return func(o *options) {
		if tr != nil {
			o.tr = tr
		}
	}
}
