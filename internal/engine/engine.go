package engine

import (
	"errors"
	"fmt"
	"io"

	"github.com/reoring/ccv/value"
)

// Kind represents token kinds from a generic source.
type Kind int

const (
	KindBeginObject Kind = iota
	KindEndObject
	KindBeginArray
	KindEndArray
	KindKey
	KindString
	KindNumber
	KindBool
	KindNull
)

// Token represents a streaming token and where it starts in the input.
type Token struct {
	Kind   Kind
	String string
	Number string
	Bool   bool
	Pos    value.Position
}

// TokenSource is a minimal interface required by the engine. Sources return
// io.EOF once the root value has been fully produced.
type TokenSource interface {
	NextToken() (Token, error)
	// Location reports the number of input bytes consumed so far, or -1 when
	// the source cannot tell.
	Location() int64
}

// ErrTrailingData is returned when a source yields tokens after the root value.
var ErrTrailingData = errors.New("unexpected data after top-level value")

// ErrUnexpectedToken is returned for token sequences that do not form a value.
var ErrUnexpectedToken = errors.New("unexpected token")

// Decode builds a value tree from the streaming token source. A key that
// repeats inside one mapping replaces the earlier member in place, so the
// member keeps its first position in the order and its last value. Sources
// wrapped with enforcement reject repeats before they reach the decoder when
// the duplicate policy is DupError.
func Decode(src TokenSource) (value.Value, error) {
	tok, err := src.NextToken()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return value.Value{}, io.ErrUnexpectedEOF
		}
		return value.Value{}, err
	}
	v, err := decodeValue(src, tok)
	if err != nil {
		return value.Value{}, err
	}
	next, err := src.NextToken()
	switch {
	case errors.Is(err, io.EOF):
		return v, nil
	case err != nil:
		return value.Value{}, err
	default:
		return value.Value{}, &TokenError{Pos: next.Pos, Err: ErrTrailingData}
	}
}

// TokenError attaches a position to a structural decoding error.
type TokenError struct {
	Pos value.Position
	Err error
}

func (e *TokenError) Error() string { return fmt.Sprintf("%v at %s", e.Err, e.Pos) }

func (e *TokenError) Unwrap() error { return e.Err }

func decodeValue(src TokenSource, tok Token) (value.Value, error) {
	switch tok.Kind {
	case KindBeginObject:
		return decodeObject(src, tok.Pos)
	case KindBeginArray:
		return decodeArray(src, tok.Pos)
	case KindString:
		return value.String(tok.String, tok.Pos), nil
	case KindNumber:
		v, err := value.Number(tok.Number, tok.Pos)
		if err != nil {
			return value.Value{}, &TokenError{Pos: tok.Pos, Err: err}
		}
		return v, nil
	case KindBool:
		return value.Bool(tok.Bool, tok.Pos), nil
	case KindNull:
		return value.Null(tok.Pos), nil
	default:
		return value.Value{}, &TokenError{Pos: tok.Pos, Err: ErrUnexpectedToken}
	}
}

func decodeObject(src TokenSource, pos value.Position) (value.Value, error) {
	var members []value.Member
	var seen map[string]int
	for {
		tok, err := src.NextToken()
		if err != nil {
			return value.Value{}, eofIsUnexpected(err)
		}
		if tok.Kind == KindEndObject {
			return value.Mapping(members, pos), nil
		}
		if tok.Kind != KindKey {
			return value.Value{}, &TokenError{Pos: tok.Pos, Err: ErrUnexpectedToken}
		}
		vt, err := src.NextToken()
		if err != nil {
			return value.Value{}, eofIsUnexpected(err)
		}
		v, err := decodeValue(src, vt)
		if err != nil {
			return value.Value{}, err
		}
		if seen == nil {
			seen = make(map[string]int)
		}
		if i, dup := seen[tok.String]; dup {
			members[i].Value = v
			continue
		}
		seen[tok.String] = len(members)
		members = append(members, value.Member{Key: tok.String, KeyPos: tok.Pos, Value: v})
	}
}

func decodeArray(src TokenSource, pos value.Position) (value.Value, error) {
	var arr []value.Value
	for {
		tok, err := src.NextToken()
		if err != nil {
			return value.Value{}, eofIsUnexpected(err)
		}
		if tok.Kind == KindEndArray {
			return value.Sequence(arr, pos), nil
		}
		v, err := decodeValue(src, tok)
		if err != nil {
			return value.Value{}, err
		}
		arr = append(arr, v)
	}
}

func eofIsUnexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
