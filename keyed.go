package aside

import (
	"context"
	"maps"

	"github.com/unkn0wn-root/aside/internal/util"
)

type KeyedMapConfig[In, V any] struct {
	// Cache selects the namespace for an input. Required.
	Cache func(In) *Controller[V]
	// Keys derives the ids an input asks for. Required.
	Keys func(In) []string
	// UpdateKeys narrows an input to the ids missing from the cache. Required.
	UpdateKeys func(in In, missing []string) In
}

// KeyedMapCache caches one scalar entry per id and recomputes only the ids
// that missed.
type KeyedMapCache[In, V any] struct {
	compute    ComputeFunc[In, map[string]V]
	cache      func(In) *Controller[V]
	keys       func(In) []string
	updateKeys func(In, []string) In
}

func NewKeyedMapCache[In, V any](compute ComputeFunc[In, map[string]V], cfg KeyedMapConfig[In, V]) (*KeyedMapCache[In, V], error) {
	if compute == nil {
		return nil, ErrNilCompute
	}
	if cfg.Cache == nil {
		return nil, ErrNilSelector
	}
	if cfg.Keys == nil || cfg.UpdateKeys == nil {
		return nil, ErrNilKeyFuncs
	}
	return &KeyedMapCache[In, V]{
		compute:    compute,
		cache:      cfg.Cache,
		keys:       cfg.Keys,
		updateKeys: cfg.UpdateKeys,
	}, nil
}

// Get returns a value for every requested id that is cached or produced by
// the compute function. Ids the compute function omits are absent.
func (k *KeyedMapCache[In, V]) Get(ctx context.Context, in In) (map[string]V, error) {
	ids := util.Unique(k.keys(in))
	if len(ids) == 0 {
		return map[string]V{}, nil
	}
	c, err := selectController(k.cache, in)
	if err != nil {
		return nil, err
	}

	out, err := c.Read(ctx, ids)
	if err != nil {
		return nil, err
	}
	missing := util.Missing(ids, out)
	if len(missing) == 0 {
		return out, nil
	}

	c.computed(strategyKeyed, len(missing))
	fresh, err := k.compute(ctx, k.updateKeys(in, missing))
	if err != nil {
		return nil, err
	}
	fresh = util.Restrict(fresh, missing)
	if err := c.Write(ctx, fresh); err != nil {
		return nil, err
	}
	maps.Copy(out, fresh)
	return out, nil
}

// Invalidate removes exactly the ids the input asks for.
func (k *KeyedMapCache[In, V]) Invalidate(ctx context.Context, in In) error {
	c, err := selectController(k.cache, in)
	if err != nil {
		return err
	}
	return c.Remove(ctx, k.keys(in))
}
