package harvest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "lowercases host", in: "https://Docs.Example.COM/Path", want: "https://docs.example.com/Path"},
		{name: "strips default https port", in: "https://docs.example.com:443/a", want: "https://docs.example.com/a"},
		{name: "strips default http port", in: "http://docs.example.com:80/a", want: "http://docs.example.com/a"},
		{name: "drops fragment", in: "https://docs.example.com/a#section", want: "https://docs.example.com/a"},
		{name: "sorts query", in: "https://docs.example.com/a?z=1&a=2", want: "https://docs.example.com/a?a=2&z=1"},
		{name: "rejects mailto", in: "mailto:team@example.com", wantErr: true},
		{name: "rejects relative", in: "/just/a/path", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeURL(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSameOrigin(t *testing.T) {
	t.Parallel()

	assert.True(t, SameOrigin("https://docs.example.com/a", "https://docs.example.com/b/c"))
	assert.False(t, SameOrigin("https://docs.example.com/a", "https://other.example.com/b"))
	assert.False(t, SameOrigin("https://docs.example.com/a", "http://docs.example.com/a"))
}

func TestResolveLink(t *testing.T) {
	t.Parallel()

	page := "https://docs.example.com/guide/intro"

	assert.Equal(t, "https://docs.example.com/guide/setup", ResolveLink(page, "setup"))
	assert.Equal(t, "https://docs.example.com/api", ResolveLink(page, "/api"))
	assert.Equal(t, "https://other.example.com/x", ResolveLink(page, "https://other.example.com/x"))
	assert.Empty(t, ResolveLink(page, "#anchor"))
	assert.Empty(t, ResolveLink(page, "mailto:team@example.com"))
	assert.Empty(t, ResolveLink(page, ""))
}
