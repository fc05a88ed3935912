package source

import (
	"bytes"
	"errors"
	"io"
	"strings"

	j "github.com/goccy/go-json"

	eng "github.com/reoring/ccv/internal/engine"
	"github.com/reoring/ccv/value"
)

type containerKind int

const (
	kindObject containerKind = iota
	kindArray
)

type jsonFrame struct {
	kind         containerKind
	expectingKey bool
}

// jsonSource implements engine.TokenSource on top of the go-json decoder.
type jsonSource struct {
	payload []byte
	dec     *j.Decoder
	stack   []jsonFrame
	last    int64
	lines   lineTracker
}

func newJSONSource(payload []byte) (eng.TokenSource, error) {
	if !j.Valid(payload) {
		return nil, jsonSyntaxError(payload)
	}
	dec := j.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	return &jsonSource{payload: payload, dec: dec, lines: lineTracker{payload: payload, line: 1, col: 1}}, nil
}

// jsonSyntaxError re-decodes an invalid payload to recover the decoder's
// message and offset.
func jsonSyntaxError(payload []byte) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return newParseError(FormatJSON, payload, CodeParseError, "empty document", value.NoPosition, io.ErrUnexpectedEOF)
	}
	var discard any
	err := j.Unmarshal(payload, &discard)
	if err == nil {
		err = errors.New("malformed document")
	}
	var se *j.SyntaxError
	if errors.As(err, &se) {
		return newParseError(FormatJSON, payload, CodeParseError, strings.TrimPrefix(se.Error(), "json: "), value.Position{Offset: se.Offset}, err)
	}
	return newParseError(FormatJSON, payload, CodeParseError, strings.TrimPrefix(err.Error(), "json: "), value.NoPosition, err)
}

func (s *jsonSource) NextToken() (eng.Token, error) {
	tok, err := s.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return eng.Token{}, io.EOF
		}
		return eng.Token{}, err
	}
	pos := s.tokenStart()
	s.last = s.dec.InputOffset()

	switch v := tok.(type) {
	case j.Delim:
		switch v {
		case '{':
			s.stack = append(s.stack, jsonFrame{kind: kindObject, expectingKey: true})
			return eng.Token{Kind: eng.KindBeginObject, Pos: pos}, nil
		case '}':
			s.pop()
			return eng.Token{Kind: eng.KindEndObject, Pos: pos}, nil
		case '[':
			s.stack = append(s.stack, jsonFrame{kind: kindArray})
			return eng.Token{Kind: eng.KindBeginArray, Pos: pos}, nil
		case ']':
			s.pop()
			return eng.Token{Kind: eng.KindEndArray, Pos: pos}, nil
		}
	case string:
		if n := len(s.stack); n > 0 {
			top := &s.stack[n-1]
			if top.kind == kindObject && top.expectingKey {
				top.expectingKey = false
				return eng.Token{Kind: eng.KindKey, String: v, Pos: pos}, nil
			}
		}
		s.valueDone()
		return eng.Token{Kind: eng.KindString, String: v, Pos: pos}, nil
	case bool:
		s.valueDone()
		return eng.Token{Kind: eng.KindBool, Bool: v, Pos: pos}, nil
	case j.Number:
		s.valueDone()
		return eng.Token{Kind: eng.KindNumber, Number: string(v), Pos: pos}, nil
	case nil:
		s.valueDone()
		return eng.Token{Kind: eng.KindNull, Pos: pos}, nil
	}
	return eng.Token{}, &eng.TokenError{Pos: pos, Err: eng.ErrUnexpectedToken}
}

// pop closes a container, which completes a value in the parent.
func (s *jsonSource) pop() {
	if n := len(s.stack); n > 0 {
		s.stack = s.stack[:n-1]
	}
	s.valueDone()
}

func (s *jsonSource) valueDone() {
	if n := len(s.stack); n > 0 {
		top := &s.stack[n-1]
		if top.kind == kindObject && !top.expectingKey {
			top.expectingKey = true
		}
	}
}

// tokenStart finds where the token just returned begins by skipping
// insignificant bytes after the previous token.
func (s *jsonSource) tokenStart() value.Position {
	off := s.last
	for off < int64(len(s.payload)) && isInsignificant(s.payload[off]) {
		off++
	}
	return s.lines.at(off)
}

func isInsignificant(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', ',', ':':
		return true
	}
	return false
}

func (s *jsonSource) Location() int64 { return s.dec.InputOffset() }
