package idx_test

import (
	"testing"
	"time"

	"github.com/chatterhq/gateway/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewProducesUniqueSortedIDs(t *testing.T) {
	t.Parallel()

	a := idx.New()
	b := idx.New()

	require.NotEqual(t, a, b)
	require.Less(t, a.String(), b.String())
}

func TestNewAtEmbedsTimestamp(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	id := idx.NewAt(at)

	require.Equal(t, at.Truncate(time.Millisecond), id.Time())
}

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("round trips a generated id", func(t *testing.T) {
		id := idx.New()
		parsed, err := idx.Parse(id.String())
		require.NoError(t, err)
		require.Equal(t, id, parsed)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		for _, s := range []string{"", "   ", "not-a-ulid", "0000"} {
			_, err := idx.Parse(s)
			require.ErrorIs(t, err, idx.ErrInvalid)
		}
	})
}

func TestIsZero(t *testing.T) {
	t.Parallel()

	require.True(t, idx.Zero.IsZero())
	require.False(t, idx.New().IsZero())
	require.True(t, idx.Zero.Time().IsZero())
}
