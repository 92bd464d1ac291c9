package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.Nil(t, Truncate(nil))
	})

	t.Run("at limit is unchanged", func(t *testing.T) {
		s := strings.Repeat("a", MaxToolOutputChars)
		assert.Equal(t, s, Truncate(s))
	})

	t.Run("one over limit is truncated", func(t *testing.T) {
		s := strings.Repeat("a", MaxToolOutputChars+1)
		got, ok := Truncate(s).(string)
		require.True(t, ok)
		assert.Equal(t, strings.Repeat("a", MaxToolOutputChars)+"... [truncated, 10001 chars total]", got)
	})

	t.Run("counts characters not bytes", func(t *testing.T) {
		s := strings.Repeat("é", MaxToolOutputChars)
		assert.Equal(t, s, Truncate(s))
	})

	t.Run("small object keeps its type", func(t *testing.T) {
		obj := map[string]any{"stdout": "ok", "exitCode": float64(0)}
		assert.Equal(t, obj, Truncate(obj))
	})

	t.Run("large object becomes string", func(t *testing.T) {
		obj := map[string]any{"stdout": strings.Repeat("z", MaxToolOutputChars)}
		got, ok := Truncate(obj).(string)
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(got, `{"stdout":"zzz`))
		// {"stdout":"..."} adds 13 characters of JSON around the payload.
		assert.True(t, strings.HasSuffix(got, "... [truncated, 10013 chars total]"))
	})

	t.Run("object is measured without HTML escaping", func(t *testing.T) {
		// Encodes to 6013 characters; HTML escaping would inflate it past the limit.
		obj := map[string]any{"stdout": strings.Repeat("<&>", 2000)}
		assert.Equal(t, obj, Truncate(obj))
	})

	t.Run("truncated object keeps raw characters", func(t *testing.T) {
		obj := map[string]any{"stdout": strings.Repeat("a && b > c", 1500)}
		got, ok := Truncate(obj).(string)
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(got, `{"stdout":"a && b > c`))
		assert.NotContains(t, got, `\u0026`)
		assert.True(t, strings.HasSuffix(got, "... [truncated, 15013 chars total]"))
	})

	t.Run("counts UTF-16 units", func(t *testing.T) {
		atLimit := strings.Repeat("😀", MaxToolOutputChars/2)
		assert.Equal(t, atLimit, Truncate(atLimit))

		over := atLimit + "😀"
		got, ok := Truncate(over).(string)
		require.True(t, ok)
		assert.Equal(t, atLimit+"... [truncated, 10002 chars total]", got)
	})

	t.Run("never splits a surrogate pair", func(t *testing.T) {
		s := "a" + strings.Repeat("😀", MaxToolOutputChars/2)
		got, ok := Truncate(s).(string)
		require.True(t, ok)
		want := "a" + strings.Repeat("😀", MaxToolOutputChars/2-1) + "... [truncated, 10001 chars total]"
		assert.Equal(t, want, got)
	})

	t.Run("numbers pass through", func(t *testing.T) {
		assert.Equal(t, 42.0, Truncate(42.0))
	})
}
