// Package schema loads JSON Schema documents that use local $defs
// indirection, inlines their references and compiles them into an
// immutable Node tree for the validator.
package schema

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/reoring/ccv/source"
	"github.com/reoring/ccv/value"
)

// Resolved is a schema ready to drive validation. It is immutable and shared
// read-only between requests.
type Resolved struct {
	// Document is the dereferenced schema without $defs.
	Document value.Value
	Root     *Node
	// Digest is the hex SHA-256 of the raw schema bytes.
	Digest string
}

// Load parses raw JSON schema bytes, resolves their references and compiles
// the result.
func Load(data []byte) (*Resolved, error) {
	res, err := source.Parse(data, source.FormatJSON)
	if err != nil {
		se := malformed("", "cannot parse schema document")
		se.Err = err
		if pe, ok := source.AsParseError(err); ok {
			se.Message = pe.Error()
		}
		return nil, se
	}
	doc, err := Resolve(res.Value)
	if err != nil {
		return nil, err
	}
	root, err := Compile(doc)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return &Resolved{Document: doc, Root: root, Digest: hex.EncodeToString(sum[:])}, nil
}
