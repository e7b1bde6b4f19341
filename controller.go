package aside

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/unkn0wn-root/aside/backend"
	"github.com/unkn0wn-root/aside/codec"
	"github.com/unkn0wn-root/aside/internal/util"
)

const (
	// ReservedField marks a field collection as fully resolved. It is never
	// accepted as a data field.
	ReservedField = "$"

	// SingleKey is the logical key SingleValueCache stores its value under.
	SingleKey = ""
)

// resolvedMarker is the stored value of ReservedField (JSON text "*").
var resolvedMarker = []byte(`"*"`)

// FieldSet selects hash fields: explicit names or every stored field.
type FieldSet = backend.FieldSet

// AllFields selects every stored field.
func AllFields() FieldSet { return backend.All() }

// OnlyFields selects the named fields.
func OnlyFields(names ...string) FieldSet { return backend.Only(names...) }

type Options[V any] struct {
	Backend backend.Backend // required
	Codec   codec.Codec[V]  // default: codec.JSON[V]
	Config  *Config         // default: DefaultConfig()
	Logger  Logger          // default: NopLogger
	Hooks   Hooks           // default: NopHooks
}

// Controller namespaces keys under a prefix, encodes values with its codec
// and dispatches bulk operations to the backend.
//
// Backend failures never reach the caller: they are logged, reported to
// Hooks and turned into empty results. The exceptions are *TypeMismatchError
// and *ReservedNameError, which are caller bugs and always propagate.
//
// A Controller is immutable. The With* methods return a new Controller sharing
// the same backend.
type Controller[V any] struct {
	be    backend.Backend
	codec codec.Codec[V]
	cfg   Config
	log   Logger
	hooks Hooks
}

func New[V any](opts Options[V]) (*Controller[V], error) {
	if opts.Backend == nil {
		return nil, ErrNilBackend
	}
	cfg := DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller[V]{
		be:    opts.Backend,
		codec: coalesce[codec.Codec[V]](opts.Codec, codec.JSON[V]{}),
		cfg:   cfg,
		log:   coalesce[Logger](opts.Logger, NopLogger{}),
		hooks: coalesce[Hooks](opts.Hooks, NopHooks{}),
	}, nil
}

// Retype returns a controller for values of type W over the same backend and
// configuration. A nil codec selects codec.JSON[W].
func Retype[V, W any](c *Controller[V], cd codec.Codec[W]) *Controller[W] {
	return &Controller[W]{
		be:    c.be,
		codec: coalesce[codec.Codec[W]](cd, codec.JSON[W]{}),
		cfg:   c.cfg,
		log:   c.log,
		hooks: c.hooks,
	}
}

// Config returns a copy of the controller's configuration.
func (c *Controller[V]) Config() Config { return c.cfg }

// Key returns the physical key for a logical key.
func (c *Controller[V]) Key(k string) string {
	return util.Join(c.cfg.Prefix, c.cfg.Separator, k)
}

func (c *Controller[V]) WithConfig(cfg Config) *Controller[V] {
	cp := *c
	cp.cfg = cfg
	return &cp
}

func (c *Controller[V]) WithPrefix(p string) *Controller[V] {
	return c.WithConfig(c.cfg.WithPrefix(p))
}

func (c *Controller[V]) WithSeparator(sep string) *Controller[V] {
	return c.WithConfig(c.cfg.WithSeparator(sep))
}

// WithDefaultTTL sets the TTL applied to writes. d <= 0 disables expiry.
func (c *Controller[V]) WithDefaultTTL(d time.Duration) *Controller[V] {
	return c.WithConfig(c.cfg.WithDefaultTTL(d))
}

func (c *Controller[V]) WithLogging(a Actions) *Controller[V] {
	return c.WithConfig(c.cfg.WithLogging(a))
}

func (c *Controller[V]) WithAllowance(a Actions) *Controller[V] {
	return c.WithConfig(c.cfg.WithAllowance(a))
}

// Read returns the cached values found for keys. Misses have no entry.
func (c *Controller[V]) Read(ctx context.Context, keys []string) (map[string]V, error) {
	out := make(map[string]V, len(keys))
	keys = util.Unique(keys)
	if len(keys) == 0 || !c.cfg.Allowed.Read {
		return out, nil
	}

	phys := make([]string, len(keys))
	for i, k := range keys {
		phys[i] = c.Key(k)
	}
	raw, err := c.be.ReadBulk(ctx, phys)
	if err != nil {
		return out, c.failKeys(ActionRead, phys, err)
	}

	hits := 0
	for i, k := range keys {
		b, ok := raw[phys[i]]
		if !ok {
			c.succeed(ActionRead, phys[i], "", OutcomeMiss)
			continue
		}
		v, err := c.codec.Decode(b)
		if err != nil {
			// undecodable entries count as misses
			c.warn(ActionRead, phys[i], "", err)
			continue
		}
		out[k] = v
		hits++
		c.succeed(ActionRead, phys[i], "", OutcomeHit)
	}
	c.hooks.Lookup(c.cfg.Prefix, hits, len(keys)-hits)
	return out, nil
}

// ReadFields returns the cached fields of the hash at key.
func (c *Controller[V]) ReadFields(ctx context.Context, key string, fields FieldSet) (map[string]V, error) {
	if err := checkFields(fields.Names()); err != nil {
		return nil, err
	}
	out, _, err := c.readFields(ctx, key, fields)
	return out, err
}

// Write stores items under their namespaced keys with the default TTL.
func (c *Controller[V]) Write(ctx context.Context, items map[string]V) error {
	if len(items) == 0 || !c.cfg.Allowed.Write {
		return nil
	}

	payload := make(map[string][]byte, len(items))
	written := make([]string, 0, len(items))
	for _, k := range slices.Sorted(maps.Keys(items)) {
		pk := c.Key(k)
		b, err := c.codec.Encode(items[k])
		if err != nil {
			c.warn(ActionWrite, pk, "", err)
			continue
		}
		payload[pk] = b
		written = append(written, pk)
	}
	if len(payload) == 0 {
		return nil
	}

	if err := c.be.WriteBulk(ctx, payload, c.cfg.DefaultTTL); err != nil {
		return c.failKeys(ActionWrite, written, err)
	}
	for _, pk := range written {
		c.succeed(ActionWrite, pk, "", OutcomeSuccess)
	}
	return nil
}

// WriteFields merges items into the hash at key.
func (c *Controller[V]) WriteFields(ctx context.Context, key string, items map[string]V) error {
	if err := checkFields(slices.Collect(maps.Keys(items))); err != nil {
		return err
	}
	return c.writeFields(ctx, key, items, false)
}

func (c *Controller[V]) Remove(ctx context.Context, keys []string) error {
	keys = util.Unique(keys)
	if len(keys) == 0 || !c.cfg.Allowed.Remove {
		return nil
	}

	phys := make([]string, len(keys))
	for i, k := range keys {
		phys[i] = c.Key(k)
	}
	if err := c.be.DeleteBulk(ctx, phys); err != nil {
		return c.failKeys(ActionRemove, phys, err)
	}
	for _, pk := range phys {
		c.succeed(ActionRemove, pk, "", OutcomeSuccess)
	}
	return nil
}

// RemoveFields deletes fields from the hash at key. Unlike the other field
// operations it accepts ReservedField, which resets the resolved marker.
func (c *Controller[V]) RemoveFields(ctx context.Context, key string, fields []string) error {
	fields = util.Unique(fields)
	if len(fields) == 0 || !c.cfg.Allowed.Remove {
		return nil
	}

	pk := c.Key(key)
	if err := c.be.DeleteHashFields(ctx, pk, fields); err != nil {
		return c.failFields(ActionRemove, pk, fields, err)
	}
	for _, f := range fields {
		c.succeed(ActionRemove, pk, f, OutcomeSuccess)
	}
	return nil
}

// IncrementWithCeiling atomically adds delta to the counter at key unless the
// result would exceed ceiling, and reports whether it did. It ignores the
// Allowed flags and, unlike every other method, returns backend errors so
// the caller picks its own failure policy.
func (c *Controller[V]) IncrementWithCeiling(ctx context.Context, key string, delta, ceiling int64) (bool, error) {
	return c.be.IncrementWithCeiling(ctx, c.Key(key), delta, ceiling)
}

// readFields reads a hash and reports whether it carried the resolved
// marker. The marker is never part of the result.
func (c *Controller[V]) readFields(ctx context.Context, key string, sel FieldSet) (map[string]V, bool, error) {
	out := make(map[string]V)
	if !c.cfg.Allowed.Read {
		return out, false, nil
	}

	var names []string
	if !sel.IsAll() {
		names = util.Unique(sel.Names())
		if len(names) == 0 {
			return out, false, nil
		}
		sel = backend.Only(names...)
	}

	pk := c.Key(key)
	raw, err := c.be.ReadHashFields(ctx, pk, sel)
	if err != nil {
		if names == nil {
			names = []string{allFieldsLabel}
		}
		return out, false, c.failFields(ActionRead, pk, names, err)
	}

	_, resolved := raw[ReservedField]
	delete(raw, ReservedField)

	for _, f := range slices.Sorted(maps.Keys(raw)) {
		v, err := c.codec.Decode(raw[f])
		if err != nil {
			c.warn(ActionRead, pk, f, err)
			continue
		}
		out[f] = v
		c.succeed(ActionRead, pk, f, OutcomeHit)
	}

	misses := 0
	if sel.IsAll() {
		if !resolved {
			misses = 1
			c.succeed(ActionRead, pk, allFieldsLabel, OutcomeMiss)
		}
	} else {
		for _, f := range names {
			if _, ok := out[f]; !ok {
				misses++
				c.succeed(ActionRead, pk, f, OutcomeMiss)
			}
		}
	}
	c.hooks.Lookup(c.cfg.Prefix, len(out), misses)
	return out, resolved, nil
}

// writeFields merges items into the hash at key. With resolved set the
// marker is written in the same call, unless an item failed to encode.
func (c *Controller[V]) writeFields(ctx context.Context, key string, items map[string]V, resolved bool) error {
	if !c.cfg.Allowed.Write || (len(items) == 0 && !resolved) {
		return nil
	}

	pk := c.Key(key)
	payload := make(map[string][]byte, len(items)+1)
	written := make([]string, 0, len(items)+1)
	for _, f := range slices.Sorted(maps.Keys(items)) {
		b, err := c.codec.Encode(items[f])
		if err != nil {
			c.warn(ActionWrite, pk, f, err)
			resolved = false
			continue
		}
		payload[f] = b
		written = append(written, f)
	}
	if resolved {
		payload[ReservedField] = resolvedMarker
		written = append(written, ReservedField)
	}
	if len(payload) == 0 {
		return nil
	}

	if err := c.be.WriteHashFields(ctx, pk, payload, c.cfg.DefaultTTL); err != nil {
		return c.failFields(ActionWrite, pk, written, err)
	}
	for _, f := range written {
		c.succeed(ActionWrite, pk, f, OutcomeSuccess)
	}
	return nil
}

// failKeys handles a failed bulk call: a type mismatch is returned, anything
// else is logged per key and swallowed.
func (c *Controller[V]) failKeys(a Action, keys []string, err error) error {
	if isTypeMismatch(err) {
		return err
	}
	for _, k := range keys {
		c.warn(a, k, "", err)
	}
	c.hooks.BackendFailure(c.cfg.Prefix, a, len(keys), err)
	return nil
}

func (c *Controller[V]) failFields(a Action, key string, fields []string, err error) error {
	if isTypeMismatch(err) {
		return err
	}
	for _, f := range fields {
		c.warn(a, key, f, err)
	}
	c.hooks.BackendFailure(c.cfg.Prefix, a, len(fields), err)
	return nil
}

func (c *Controller[V]) warn(a Action, key, field string, err error) {
	f := event(a, key, field, OutcomeFailure)
	f["err"] = err
	c.log.Warn("aside: "+a.String(), f)
}

func (c *Controller[V]) succeed(a Action, key, field, outcome string) {
	if !c.cfg.Logged.Has(a) {
		return
	}
	c.log.Debug("aside: "+a.String(), event(a, key, field, outcome))
}

func (c *Controller[V]) computed(strategy string, n int) {
	c.hooks.Compute(c.cfg.Prefix, strategy, n)
}
