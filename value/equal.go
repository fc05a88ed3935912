package value

// Equal reports whether a and b hold the same data. Numbers compare by
// numeric value, mappings compare regardless of member order and positions
// are ignored.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.f == b.f
	case KindString:
		return a.text == b.text
	case KindSequence:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if distinctKeys(a) != distinctKeys(b) {
			return false
		}
		for _, m := range a.members {
			other, ok := b.Get(m.Key)
			if !ok {
				return false
			}
			mine, _ := a.Get(m.Key)
			if !Equal(mine, other) {
				return false
			}
		}
		return true
	}
	return false
}

func distinctKeys(v Value) int {
	if v.index != nil {
		return len(v.index)
	}
	seen := make(map[string]struct{}, len(v.members))
	for _, m := range v.members {
		seen[m.Key] = struct{}{}
	}
	return len(seen)
}
