package authsdk

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResponseParsed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        string
		mode        ParseMode
		want        map[string]any
		ok          bool
	}{
		{
			name:        "automatic json",
			contentType: "application/json; charset=utf-8",
			body:        `{"access_token":"salmon"}`,
			want:        map[string]any{"access_token": "salmon"},
			ok:          true,
		},
		{
			name:        "automatic vendor json",
			contentType: "application/vnd.api+json",
			body:        `{"access_token":"salmon"}`,
			want:        map[string]any{"access_token": "salmon"},
			ok:          true,
		},
		{
			name:        "automatic form",
			contentType: "application/x-www-form-urlencoded",
			body:        "access_token=salmon&scope=a&scope=b",
			want:        map[string]any{"access_token": "salmon", "scope": []string{"a", "b"}},
			ok:          true,
		},
		{
			name:        "automatic text stays raw",
			contentType: "text/plain",
			body:        "access_token=salmon",
		},
		{
			name:        "forced query",
			contentType: "text/plain",
			body:        "access_token=salmon",
			mode:        ParseQuery,
			want:        map[string]any{"access_token": "salmon"},
			ok:          true,
		},
		{
			name:        "forced json on bad body",
			contentType: "application/json",
			body:        "not json",
			mode:        ParseJSON,
		},
		{
			name:        "forced text",
			contentType: "application/json",
			body:        `{"a":1}`,
			mode:        ParseText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp := newResponse(http.StatusOK, http.Header{"Content-Type": {tt.contentType}}, []byte(tt.body), tt.mode)
			got, ok := resp.Parsed()
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.body, resp.Text())
		})
	}
}
