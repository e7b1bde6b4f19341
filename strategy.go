package aside

import (
	"context"
	"errors"
)

// ErrNoController is returned when a cache selector yields a nil Controller.
var ErrNoController = errors.New("aside: cache selector returned nil controller")

// ComputeFunc produces the value(s) a strategy caches.
type ComputeFunc[In, Out any] func(ctx context.Context, in In) (Out, error)

// Fixed returns a cache selector that always yields c.
func Fixed[In, V any](c *Controller[V]) func(In) *Controller[V] {
	return func(In) *Controller[V] { return c }
}

func selectController[In, V any](sel func(In) *Controller[V], in In) (*Controller[V], error) {
	c := sel(in)
	if c == nil {
		return nil, ErrNoController
	}
	return c, nil
}
