package authsdk

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeOverridesWin(t *testing.T) {
	t.Parallel()

	base := Params{"client_id": "abc", "scope": "read"}
	overrides := Params{"scope": "write", "state": "xyz"}

	got := Merge(base, overrides)
	require.Equal(t, Params{"client_id": "abc", "scope": "write", "state": "xyz"}, got)

	require.Equal(t, Params{"client_id": "abc", "scope": "read"}, base)
	require.Equal(t, Params{"scope": "write", "state": "xyz"}, overrides)

	require.NotNil(t, Merge(nil, nil))
}

func TestParamsEncodeIsSorted(t *testing.T) {
	t.Parallel()

	p := Params{"b": "2", "a": "1 1", "c": ""}
	require.Equal(t, "a=1+1&b=2&c=", p.Encode())
	require.Equal(t, []string{"a", "b", "c"}, p.Keys())
	require.True(t, p.Has("c"))
	require.False(t, p.Has("d"))
}

func TestHeadersCanonicalKeys(t *testing.T) {
	t.Parallel()

	h := Headers{"authorization": "Basic x"}
	require.True(t, h.Has("Authorization"))

	v, ok := h.Get("AUTHORIZATION")
	require.True(t, ok)
	require.Equal(t, "Basic x", v)

	merged := MergeHeaders(h, Headers{"Authorization": "Bearer y", "x-trace": "1"})
	require.Equal(t, Headers{"Authorization": "Bearer y", "X-Trace": "1"}, merged)

	dst := http.Header{}
	merged.apply(dst)
	require.Equal(t, "Bearer y", dst.Get("Authorization"))
	require.Equal(t, "1", dst.Get("X-Trace"))
}
