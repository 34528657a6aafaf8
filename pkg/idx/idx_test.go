package idx_test

import (
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/oauthsdk/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	id := idx.New()
	require.NotEmpty(t, id.String())

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
	require.False(t, id.IsZero())
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "   ", "not-a-ulid", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z"} {
		_, err := idx.Parse(s)
		require.ErrorIs(t, err, idx.ErrInvalid, s)
	}
}

func TestOrdering(t *testing.T) {
	a := idx.NewAt(time.Unix(1, 0).UTC())
	b := idx.NewAt(time.Unix(2, 0).UTC())

	require.Equal(t, -1, idx.Compare(a, b))
	require.Equal(t, 1, idx.Compare(b, a))
	require.Equal(t, 0, idx.Compare(a, a))
}

func TestTimeExtraction(t *testing.T) {
	tm := time.Unix(1700000000, 0).UTC()
	id := idx.NewAt(tm)

	require.WithinDuration(t, tm, id.Time(), time.Millisecond)
	require.True(t, idx.Zero.Time().IsZero())
}

func TestMustParse(t *testing.T) {
	id := idx.MustParse("01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV")
	require.Equal(t, "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", id.String())

	require.Panics(t, func() { idx.MustParse("nope") })
}

func TestNewNonce(t *testing.T) {
	t.Parallel()

	ts := time.Unix(1700000000, 0).UTC()

	a, err := idx.NewNonce(ts)
	require.NoError(t, err)
	b, err := idx.NewNonce(ts)
	require.NoError(t, err)

	// Same timestamp, different entropy
	require.NotEqual(t, a, b)
	require.Len(t, a, 26)
	require.Equal(t, a[:10], b[:10], "timestamp prefix should match")

	parsed, err := idx.Parse(a)
	require.NoError(t, err)
	require.WithinDuration(t, ts, parsed.Time(), time.Millisecond)
}

func TestNewNonce_Concurrent(t *testing.T) {
	t.Parallel()

	const workers = 16
	const perWorker = 64

	ts := time.Now().UTC()
	var (
		mu   sync.Mutex
		seen = make(map[string]bool, workers*perWorker)
		wg   sync.WaitGroup
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				n, err := idx.NewNonce(ts)
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				seen[n] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
}
