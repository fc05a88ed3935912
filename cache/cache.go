// Package cache defines the report cache consulted by the validation engine.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/reoring/ccv/source"
	"github.com/reoring/ccv/validator"
)

// Cache stores validation reports by key. Implementations must be safe for
// concurrent use. A miss is reported as (Report{}, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (validator.Report, bool, error)
	Set(ctx context.Context, key string, r validator.Report) error
}

// Key derives the cache key for validating payload in format f against the
// schema identified by digest. settings fingerprints the engine options that
// shape a report, so engines configured differently never share entries.
func Key(digest, settings string, f source.Format, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(digest))
	h.Write([]byte{0})
	h.Write([]byte(settings))
	h.Write([]byte{0})
	h.Write([]byte(f))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
