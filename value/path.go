package value

import (
	"strconv"
	"strings"
)

// Path builds JSON Pointer paths in a chain-safe way. Each step shares its
// parent, so extending a path never copies or mutates the receiver. The zero
// Path (and a nil *Path) is the document root.
type Path struct {
	parent *Path
	token  string
	depth  int
}

// Root returns the root path.
func Root() *Path { return nil }

// Field returns p extended with a mapping key. The key is escaped when the
// pointer is rendered.
func (p *Path) Field(name string) *Path {
	return &Path{parent: p, token: EscapeToken(name), depth: p.Depth() + 1}
}

// Index returns p extended with a sequence index.
func (p *Path) Index(i int) *Path {
	return &Path{parent: p, token: strconv.Itoa(i), depth: p.Depth() + 1}
}

// Depth returns the number of tokens in p.
func (p *Path) Depth() int {
	if p == nil {
		return 0
	}
	return p.depth
}

// Pointer renders p as an RFC 6901 pointer. The root renders as "/".
func (p *Path) Pointer() string {
	if p.Depth() == 0 {
		return "/"
	}
	parts := make([]string, p.depth)
	for cur := p; cur != nil && cur.depth > 0; cur = cur.parent {
		parts[cur.depth-1] = cur.token
	}
	return "/" + strings.Join(parts, "/")
}

func (p *Path) String() string { return p.Pointer() }

// EscapeToken escapes '~' and '/' in a reference token per RFC 6901.
func EscapeToken(s string) string {
	if !strings.ContainsAny(s, "~/") {
		return s
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}

// UnescapeToken reverses EscapeToken. "~1" is replaced before "~0" so that
// "~01" yields "~1".
func UnescapeToken(s string) string {
	if !strings.Contains(s, "~") {
		return s
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "~1", "/"), "~0", "~")
}

// SplitPointer splits a pointer into unescaped reference tokens. Both "" and
// "/" denote the root and yield no tokens. A leading "#" (URI fragment form)
// is accepted.
func SplitPointer(pointer string) []string {
	pointer = strings.TrimPrefix(pointer, "#")
	if pointer == "" || pointer == "/" {
		return nil
	}
	pointer = strings.TrimPrefix(pointer, "/")
	raw := strings.Split(pointer, "/")
	out := make([]string, len(raw))
	for i, tok := range raw {
		out[i] = UnescapeToken(tok)
	}
	return out
}
