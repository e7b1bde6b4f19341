package aside

import "context"

type SingleValueConfig[In, V any] struct {
	// Cache selects the namespace for an input. Required.
	Cache func(In) *Controller[V]
}

// SingleValueCache caches one value per namespace under SingleKey.
type SingleValueCache[In, V any] struct {
	compute ComputeFunc[In, V]
	cache   func(In) *Controller[V]
}

func NewSingleValueCache[In, V any](compute ComputeFunc[In, V], cfg SingleValueConfig[In, V]) (*SingleValueCache[In, V], error) {
	if compute == nil {
		return nil, ErrNilCompute
	}
	if cfg.Cache == nil {
		return nil, ErrNilSelector
	}
	return &SingleValueCache[In, V]{compute: compute, cache: cfg.Cache}, nil
}

// Get returns the cached value or computes, stores and returns it.
func (s *SingleValueCache[In, V]) Get(ctx context.Context, in In) (V, error) {
	var zero V
	c, err := selectController(s.cache, in)
	if err != nil {
		return zero, err
	}

	got, err := c.Read(ctx, []string{SingleKey})
	if err != nil {
		return zero, err
	}
	if v, ok := got[SingleKey]; ok {
		return v, nil
	}

	c.computed(strategySingle, 1)
	v, err := s.compute(ctx, in)
	if err != nil {
		return zero, err
	}
	if err := c.Write(ctx, map[string]V{SingleKey: v}); err != nil {
		return zero, err
	}
	return v, nil
}

func (s *SingleValueCache[In, V]) Invalidate(ctx context.Context, in In) error {
	c, err := selectController(s.cache, in)
	if err != nil {
		return err
	}
	return c.Remove(ctx, []string{SingleKey})
}
