// Package utils holds small conversions shared by the session and menu code.
package utils

// ToStringSlice reads a list decoded from loosely typed JSON, such as a
// claim or a meta entry. Non-string elements are skipped; anything that is
// not a list yields nil.
func ToStringSlice(v any) []string {
	switch list := v.(type) {
	case []string:
		out := make([]string, len(list))
		copy(out, list)
		return out
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Value dereferences v, giving the zero value for nil.
func Value[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

func Ptr[T any](v T) *T {
	return &v
}
