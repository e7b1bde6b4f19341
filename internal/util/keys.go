package util

// Join builds a physical key: prefix + sep + key.
func Join(prefix, sep, key string) string {
	return prefix + sep + key
}

// Unique returns keys without duplicates, first occurrence order kept.
// The input is never modified.
func Unique(keys []string) []string {
	if len(keys) < 2 {
		return keys
	}
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Missing returns the keys of want absent from have, in want's order.
func Missing[V any](want []string, have map[string]V) []string {
	var out []string
	for _, k := range want {
		if _, ok := have[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// Restrict returns the entries of m whose key is in keys.
func Restrict[V any](m map[string]V, keys []string) map[string]V {
	out := make(map[string]V, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out
}
