package database

import "context"

// Collect drains r, decoding every line as one T, in stream order.
func Collect[T any](ctx context.Context, r *TableReader, c Codec[T]) ([]T, error) {
	var out []T
	for row := range r.All(ctx) {
		v, err := As(row, c)
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, r.Err()
}

// CollectSet drains r into a set.
func CollectSet[T comparable](ctx context.Context, r *TableReader, c Codec[T]) (map[T]struct{}, error) {
	out := make(map[T]struct{})
	for row := range r.All(ctx) {
		v, err := As(row, c)
		if err != nil {
			return out, err
		}
		out[v] = struct{}{}
	}
	return out, r.Err()
}

// CollectMap drains r into a map keyed by the pair's first element. When a
// key repeats, the first line wins.
func CollectMap[K comparable, V any](ctx context.Context, r *TableReader, c Codec[Pair[K, V]]) (map[K]V, error) {
	out := make(map[K]V)
	for row := range r.All(ctx) {
		p, err := As(row, c)
		if err != nil {
			return out, err
		}
		if _, ok := out[p.First]; !ok {
			out[p.First] = p.Second
		}
	}
	return out, r.Err()
}

// CollectMultiMap drains r into a map from each key to all of its values
// in stream order.
func CollectMultiMap[K comparable, V any](ctx context.Context, r *TableReader, c Codec[Pair[K, V]]) (map[K][]V, error) {
	out := make(map[K][]V)
	for row := range r.All(ctx) {
		p, err := As(row, c)
		if err != nil {
			return out, err
		}
		out[p.First] = append(out[p.First], p.Second)
	}
	return out, r.Err()
}

// ResultAs decodes a result that must contain exactly one row.
func ResultAs[T any](res *Result, c Codec[T]) (T, error) {
	var zero T
	if !res.HasResultSet() {
		return zero, errMisuse("statement does not yield a result set")
	}
	if res.Len() != 1 {
		return zero, errOutOfRange("expected exactly one row, got %d", res.Len())
	}
	return As(res.Row(0), c)
}

// ResultCollect decodes every row of a result.
func ResultCollect[T any](res *Result, c Codec[T]) ([]T, error) {
	if !res.HasResultSet() {
		return nil, errMisuse("statement does not yield a result set")
	}
	out := make([]T, 0, res.Len())
	for row := range res.All() {
		v, err := As(row, c)
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}
