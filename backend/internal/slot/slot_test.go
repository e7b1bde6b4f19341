package slot

import (
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/aside/backend"
)

func TestExpired(t *testing.T) {
	now := time.Unix(100, 0)
	s := NewScalar([]byte("x"))
	assert.False(t, s.Expired(now))

	s.Deadline = now
	assert.True(t, s.Expired(now))
	assert.False(t, s.Expired(now.Add(-time.Nanosecond)))
}

func TestHashReadMergeDrop(t *testing.T) {
	s := NewHash()
	s.Merge(map[string][]byte{"a": []byte("1"), "b": []byte("2")})

	assert.Equal(t, map[string][]byte{"a": []byte("1")}, s.Read(backend.Only("a", "z")))
	assert.Len(t, s.Read(backend.All()), 2)
	assert.Equal(t, int64(4), s.Cost())

	assert.False(t, s.Drop([]string{"a"}))
	assert.True(t, s.Drop([]string{"b"}))
	assert.Equal(t, int64(1), s.Cost())
}

func TestIncrement(t *testing.T) {
	next, ok, err := Increment(nil, "n", 3, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", string(next))

	next, ok, err = Increment(NewScalar([]byte("3")), "n", 3, 5)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, next)

	_, _, err = Increment(NewScalar([]byte("x")), "n", 1, 5)
	assert.Error(t, err)

	var tm *backend.TypeMismatchError
	_, _, err = Increment(NewHash(), "n", 1, 5)
	assert.True(t, errors.As(err, &tm))
}

func TestIncrementNeverWraps(t *testing.T) {
	s := NewScalar([]byte(strconv.FormatInt(math.MaxInt64, 10)))
	next, ok, err := Increment(s, "n", 1, math.MaxInt64)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, next)

	s = NewScalar([]byte(strconv.FormatInt(math.MinInt64, 10)))
	_, ok, err = Increment(s, "n", -1, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	next, ok, err = Increment(NewScalar([]byte("5")), "n", -2, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", string(next))
}
