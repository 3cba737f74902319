package urlcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Check(t *testing.T) {
	f := NewFilter([]string{"bit.ly", "t.co", "tinyurl.com", "pastebin.com"})

	tests := []struct {
		name     string
		url      string
		wantOK   bool
		wantHost string
	}{
		{"accepts https with real host", "https://example.com/verify", true, "example.com"},
		{"rejects http scheme", "http://example.com/verify", false, ""},
		{"rejects denylisted host", "https://bit.ly/xyz", false, ""},
		{"rejects subdomain of denylisted host", "https://sub.bit.ly/xyz", false, ""},
		{"rejects dotless host", "https://localhost/verify", false, ""},
		{"rejects unparsable input", "not a url", false, ""},
		{"rejects empty input", "", false, ""},
		{"rejects relative URL", "/verify", false, ""},
		{"rejects other denylist entry", "https://pastebin.com/raw/abc", false, ""},
		{"lower-cases the host", "https://EXAMPLE.ORG/v", true, "example.org"},
		{"does not treat suffix as subdomain", "https://notbit.ly.example.com/x", true, "notbit.ly.example.com"},
		{"accepts host with port", "https://example.com:8443/verify", true, "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, host := f.Check(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantHost, host)
		})
	}
}

func TestFilter_ConfiguredDenylistIsNormalized(t *testing.T) {
	f := NewFilter([]string{" Grabify.Link ", ""})

	ok, _ := f.Check("https://grabify.link/abc")
	assert.False(t, ok)

	ok, host := f.Check("https://example.com/abc")
	assert.True(t, ok)
	assert.Equal(t, "example.com", host)
}
