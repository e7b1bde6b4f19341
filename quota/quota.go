// Package quota enforces per-subject usage limits on top of an aside
// controller's bounded increment.
//
// Counters live under the controller's namespace, one key per subject, and
// are shared by every process using the same backend. Take never lets a
// counter pass the ceiling, even under concurrent callers.
package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/aside"
)

var (
	ErrNilController = errors.New("quota: controller is required")
	ErrBadCeiling    = errors.New("quota: ceiling must be positive")
)

type Quota struct {
	ctrl    *aside.Controller[int64]
	ceiling int64
}

func New(ctrl *aside.Controller[int64], ceiling int64) (*Quota, error) {
	if ctrl == nil {
		return nil, ErrNilController
	}
	if ceiling <= 0 {
		return nil, ErrBadCeiling
	}
	return &Quota{ctrl: ctrl, ceiling: ceiling}, nil
}

func (q *Quota) Ceiling() int64 { return q.ceiling }

// Take reserves n units for subject and reports whether they fit. Backend
// errors are returned; callers choose whether to admit on failure.
func (q *Quota) Take(ctx context.Context, subject string, n int64) (bool, error) {
	if n <= 0 {
		return false, fmt.Errorf("quota: take %d: amount must be positive", n)
	}
	ok, err := q.ctrl.IncrementWithCeiling(ctx, subject, n, q.ceiling)
	if err != nil {
		return false, fmt.Errorf("quota: take %q: %w", subject, err)
	}
	return ok, nil
}

// Used returns the units consumed by subject. An unreachable backend reads
// as zero usage.
func (q *Quota) Used(ctx context.Context, subject string) (int64, error) {
	got, err := q.ctrl.Read(ctx, []string{subject})
	if err != nil {
		return 0, err
	}
	return got[subject], nil
}

// Remaining returns the units subject may still take.
func (q *Quota) Remaining(ctx context.Context, subject string) (int64, error) {
	used, err := q.Used(ctx, subject)
	if err != nil {
		return 0, err
	}
	return max(q.ceiling-used, 0), nil
}

// Reset clears the counter of subject.
func (q *Quota) Reset(ctx context.Context, subject string) error {
	return q.ctrl.Remove(ctx, []string{subject})
}
