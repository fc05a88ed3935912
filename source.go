package ccv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/reoring/ccv/schemas"
)

// MaxSchemaBytes bounds schema documents read from files and URLs.
const MaxSchemaBytes = 32 << 20

// SchemaSource supplies the raw bytes of a schema document. String names
// the source in logs and errors.
type SchemaSource interface {
	Load(ctx context.Context) ([]byte, error)
	String() string
}

// Embedded returns the schema shipped with the binary for kind.
func Embedded(kind ConfigKind) SchemaSource { return embeddedSource{kind: kind} }

type embeddedSource struct{ kind ConfigKind }

func (s embeddedSource) Load(context.Context) ([]byte, error) {
	switch s.kind {
	case CloudConfig:
		return schemas.CloudConfig, nil
	case NetworkConfig:
		return schemas.NetworkConfig, nil
	}
	return nil, fmt.Errorf("no embedded schema for %s", s.kind)
}

func (s embeddedSource) String() string { return "embedded:" + s.kind.String() }

// File reads the schema from path.
func File(path string) SchemaSource { return fileSource(path) }

type fileSource string

func (s fileSource) Load(context.Context) ([]byte, error) {
	f, err := os.Open(string(s))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLimited(f)
}

func (s fileSource) String() string { return "file:" + string(s) }

// URL fetches the schema with an HTTP GET when the engine is built.
// A nil client uses http.DefaultClient.
func URL(rawURL string, client *http.Client) SchemaSource {
	if client == nil {
		client = http.DefaultClient
	}
	return urlSource{url: rawURL, client: client}
}

type urlSource struct {
	url    string
	client *http.Client
}

func (s urlSource) Load(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/schema+json, application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %s", s.url, resp.Status)
	}
	return readLimited(resp.Body)
}

func (s urlSource) String() string { return s.url }

// Bytes serves data as a schema named name.
func Bytes(name string, data []byte) SchemaSource { return bytesSource{name: name, data: data} }

type bytesSource struct {
	name string
	data []byte
}

func (s bytesSource) Load(context.Context) ([]byte, error) { return s.data, nil }
func (s bytesSource) String() string                       { return s.name }

// Locate picks a source from a location string: empty selects the embedded
// schema for kind, an http(s) URL is fetched, anything else is a file path.
func Locate(kind ConfigKind, location string) SchemaSource {
	switch {
	case location == "":
		return Embedded(kind)
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return URL(location, nil)
	default:
		return File(location)
	}
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSchemaBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxSchemaBytes {
		return nil, fmt.Errorf("schema exceeds %d bytes", MaxSchemaBytes)
	}
	return data, nil
}
