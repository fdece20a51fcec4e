package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOrigin(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"https://example.com", "https://example.com", true},
		{"https://example.com/widget?v=2", "https://example.com", true},
		{"http://localhost:3000", "http://localhost:3000", true},
		{"", "", false},
		{"not a url", "", false},
		{"example.com", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeOrigin(tt.raw)
		assert.Equal(t, tt.ok, ok, "raw=%q", tt.raw)
		assert.Equal(t, tt.want, got, "raw=%q", tt.raw)
	}
}

func TestAllowedWithAllowList(t *testing.T) {
	policy := NewOriginPolicy([]string{"https://allowed.example"}, "https://widget.example")

	assert.True(t, policy.Allowed(""), "missing Origin is a same-origin caller")
	assert.True(t, policy.Allowed("https://allowed.example"))
	assert.True(t, policy.Allowed("https://allowed.example/some/path"))
	assert.False(t, policy.Allowed("https://evil.example"))
	assert.False(t, policy.Allowed("not a url"))
}

func TestAllowedWithEmptyListAllowsAll(t *testing.T) {
	policy := NewOriginPolicy(nil, "https://widget.example")

	assert.True(t, policy.Allowed("https://anywhere.example"))
	assert.True(t, policy.Allowed(""))
}

func TestHeadersEchoListedOrigin(t *testing.T) {
	policy := NewOriginPolicy([]string{"https://a.example", "https://b.example"}, "https://widget.example")

	headers := policy.Headers("https://b.example")
	assert.Equal(t, "https://b.example", headers["Access-Control-Allow-Origin"])
	assert.Equal(t, "true", headers["Access-Control-Allow-Credentials"])
}

func TestHeadersUnlistedOriginGetsFirstListed(t *testing.T) {
	policy := NewOriginPolicy([]string{"https://a.example"}, "https://widget.example")

	headers := policy.Headers("https://evil.example")
	assert.Equal(t, "https://a.example", headers["Access-Control-Allow-Origin"])
}

func TestHeadersEmptyList(t *testing.T) {
	policy := NewOriginPolicy(nil, "https://widget.example")

	assert.Equal(t, "https://caller.example", policy.Headers("https://caller.example")["Access-Control-Allow-Origin"])
	assert.Equal(t, "*", policy.Headers("")["Access-Control-Allow-Origin"])
}
