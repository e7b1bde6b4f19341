package aside

import (
	"context"
	"maps"
	"slices"

	"github.com/unkn0wn-root/aside/internal/util"
)

type FieldCollectionConfig[In, V any] struct {
	// Cache selects the namespace for an input. Required.
	Cache func(In) *Controller[V]
	// Key derives the entity key. Optional, defaults to "".
	Key func(In) string
	// Fields derives the requested fields, or AllFields(). Required.
	Fields func(In) FieldSet
	// UpdateFields narrows an input before computing. In explicit mode
	// missing holds the uncached fields and known is nil; in ALL mode missing
	// is nil and known lists the field names already cached. Required.
	UpdateFields func(in In, missing, known []string) In
}

// FieldCollectionCache caches the fields of one entity in a hash.
//
// In ALL mode a collection is trusted only once it carries the resolved
// marker (ReservedField), written together with the computed fields. A
// resolved collection is served without computing, even when empty.
type FieldCollectionCache[In, V any] struct {
	compute      ComputeFunc[In, map[string]V]
	cache        func(In) *Controller[V]
	key          func(In) string
	fields       func(In) FieldSet
	updateFields func(In, []string, []string) In
}

func NewFieldCollectionCache[In, V any](compute ComputeFunc[In, map[string]V], cfg FieldCollectionConfig[In, V]) (*FieldCollectionCache[In, V], error) {
	if compute == nil {
		return nil, ErrNilCompute
	}
	if cfg.Cache == nil {
		return nil, ErrNilSelector
	}
	if cfg.Fields == nil || cfg.UpdateFields == nil {
		return nil, ErrNilKeyFuncs
	}
	key := cfg.Key
	if key == nil {
		key = func(In) string { return "" }
	}
	return &FieldCollectionCache[In, V]{
		compute:      compute,
		cache:        cfg.Cache,
		key:          key,
		fields:       cfg.Fields,
		updateFields: cfg.UpdateFields,
	}, nil
}

func (f *FieldCollectionCache[In, V]) Get(ctx context.Context, in In) (map[string]V, error) {
	sel := f.fields(in)
	if sel.IsAll() {
		return f.getAll(ctx, in)
	}

	names := util.Unique(sel.Names())
	if err := checkFields(names); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return map[string]V{}, nil
	}
	c, err := selectController(f.cache, in)
	if err != nil {
		return nil, err
	}
	key := f.key(in)

	out, _, err := c.readFields(ctx, key, OnlyFields(names...))
	if err != nil {
		return nil, err
	}
	missing := util.Missing(names, out)
	if len(missing) == 0 {
		return out, nil
	}

	c.computed(strategyFields, len(missing))
	fresh, err := f.compute(ctx, f.updateFields(in, missing, nil))
	if err != nil {
		return nil, err
	}
	fresh = util.Restrict(fresh, missing)
	if err := c.writeFields(ctx, key, fresh, false); err != nil {
		return nil, err
	}
	maps.Copy(out, fresh)
	return out, nil
}

func (f *FieldCollectionCache[In, V]) getAll(ctx context.Context, in In) (map[string]V, error) {
	c, err := selectController(f.cache, in)
	if err != nil {
		return nil, err
	}
	key := f.key(in)

	out, resolved, err := c.readFields(ctx, key, AllFields())
	if err != nil {
		return nil, err
	}
	if resolved {
		return out, nil
	}

	known := slices.Sorted(maps.Keys(out))
	// the number of missing fields is unknown in ALL mode
	c.computed(strategyFields, 0)
	fresh, err := f.compute(ctx, f.updateFields(in, nil, known))
	if err != nil {
		return nil, err
	}
	if err := checkFields(slices.Collect(maps.Keys(fresh))); err != nil {
		return nil, err
	}
	if err := c.writeFields(ctx, key, fresh, true); err != nil {
		return nil, err
	}
	maps.Copy(out, fresh)
	return out, nil
}

// Invalidate removes the whole collection in ALL mode. In explicit mode it
// removes the requested fields and the resolved marker.
func (f *FieldCollectionCache[In, V]) Invalidate(ctx context.Context, in In) error {
	c, err := selectController(f.cache, in)
	if err != nil {
		return err
	}
	sel := f.fields(in)
	if sel.IsAll() {
		return c.Remove(ctx, []string{f.key(in)})
	}
	names := append(slices.Clone(sel.Names()), ReservedField)
	return c.RemoveFields(ctx, f.key(in), names)
}
