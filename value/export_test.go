package value

import (
	"fmt"
	"sort"
	"strconv"
)

// FromAny builds a Value from plain Go values. Map keys are sorted because Go
// maps carry no order.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(NoPosition), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t, NoPosition), nil
	case string:
		return String(t, NoPosition), nil
	case float64:
		return Float(t, NoPosition), nil
	case float32:
		return Float(float64(t), NoPosition), nil
	case int:
		return Int(int64(t), NoPosition), nil
	case int64:
		return Int(t, NoPosition), nil
	case int32:
		return Int(int64(t), NoPosition), nil
	case uint64:
		return Number(strconv.FormatUint(t, 10), NoPosition)
	case fmt.Stringer:
		// json.Number from either encoding/json or goccy/go-json
		return Number(t.String(), NoPosition)
	case []any:
		items := make([]Value, len(t))
		for i, it := range t {
			v, err := FromAny(it)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Sequence(items, NoPosition), nil
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = String(s, NoPosition)
		}
		return Sequence(items, NoPosition), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		members := make([]Member, 0, len(keys))
		for _, k := range keys {
			v, err := FromAny(t[k])
			if err != nil {
				return Value{}, err
			}
			members = append(members, Member{Key: k, KeyPos: NoPosition, Value: v})
		}
		return Mapping(members, NoPosition), nil
	default:
		return Value{}, fmt.Errorf("value: unsupported type %T", x)
	}
}
