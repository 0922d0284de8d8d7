package kaleido

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Cache_GetOrFill(t *testing.T) {
	t.Run("fills once and serves from cache", func(t *testing.T) {
		cache := NewCache[int]()
		calls := 0
		fill := func() (int, error) {
			calls++
			return 42, nil
		}

		value, err := cache.GetOrFill("key", fill)
		require.NoError(t, err)
		assert.Equal(t, 42, value)

		value, err = cache.GetOrFill("key", fill)
		require.NoError(t, err)
		assert.Equal(t, 42, value)
		assert.Equal(t, 1, calls)
	})

	t.Run("fill error is not cached", func(t *testing.T) {
		cache := NewCache[int]()
		calls := 0
		failing := func() (int, error) {
			calls++
			return 0, errors.New("boom")
		}

		_, err := cache.GetOrFill("key", failing)
		require.EqualError(t, err, "boom")

		_, err = cache.GetOrFill("key", failing)
		require.EqualError(t, err, "boom")
		assert.Equal(t, 2, calls)
	})

	t.Run("invalidate forces a refill", func(t *testing.T) {
		cache := NewCache[string]()
		values := []string{"first", "second"}
		fill := func() (string, error) {
			value := values[0]
			values = values[1:]
			return value, nil
		}

		value, err := cache.GetOrFill("key", fill)
		require.NoError(t, err)
		assert.Equal(t, "first", value)

		cache.Invalidate("key")

		value, err = cache.GetOrFill("key", fill)
		require.NoError(t, err)
		assert.Equal(t, "second", value)
	})

	t.Run("keys are independent", func(t *testing.T) {
		cache := NewCache[string]()

		a, err := cache.GetOrFill("a", func() (string, error) { return "A", nil })
		require.NoError(t, err)
		b, err := cache.GetOrFill("b", func() (string, error) { return "B", nil })
		require.NoError(t, err)

		assert.Equal(t, "A", a)
		assert.Equal(t, "B", b)

		cache.Clear()

		a, err = cache.GetOrFill("a", func() (string, error) { return "A2", nil })
		require.NoError(t, err)
		assert.Equal(t, "A2", a)
	})
}
