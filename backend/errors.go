package backend

import "fmt"

// TypeMismatchError is returned when a key holding one kind of slot is
// accessed as the other kind. It is a programmer error and is never
// swallowed by the controller.
type TypeMismatchError struct {
	Key  string
	Want Kind
	Got  Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("backend: key %q holds a %s value, accessed as %s", e.Key, e.Got, e.Want)
}

// Mismatch is shorthand for building a *TypeMismatchError.
func Mismatch(key string, want, got Kind) error {
	return &TypeMismatchError{Key: key, Want: want, Got: got}
}
