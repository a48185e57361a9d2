package utils

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

// Unique returns the items of slices in first-seen order with duplicates removed.
func Unique[T comparable](slices ...[]T) []T {
	seen := make(map[T]struct{})
	out := make([]T, 0)
	for _, s := range slices {
		for _, v := range s {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
