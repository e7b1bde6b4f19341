package aside

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/aside/backend"
)

var (
	ErrNilBackend  = errors.New("aside: backend is required")
	ErrNilCompute  = errors.New("aside: compute function is required")
	ErrNilSelector = errors.New("aside: cache selector is required")
	ErrNilKeyFuncs = errors.New("aside: key derivation functions are required")
	ErrNegativeTTL = errors.New("aside: default TTL must not be negative")
)

// TypeMismatchError reports a scalar key used as a hash or vice versa.
type TypeMismatchError = backend.TypeMismatchError

// ReservedNameError reports the reserved field name used as data.
type ReservedNameError struct {
	Name string
}

func (e *ReservedNameError) Error() string {
	return fmt.Sprintf("aside: field name %q is reserved", e.Name)
}

// checkFields rejects the reserved field.
func checkFields(fields []string) error {
	for _, f := range fields {
		if f == ReservedField {
			return &ReservedNameError{Name: f}
		}
	}
	return nil
}

func isTypeMismatch(err error) bool {
	var tm *TypeMismatchError
	return errors.As(err, &tm)
}
