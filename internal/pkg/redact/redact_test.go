package redact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUsername(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"alice", "al***"},
		{"bo", "***"},
		{"x", "***"},
		{"", "***"},
		{"日本語ユーザー", "日本***"},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, Username(tc.in), "in=%q", tc.in)
	}
}

func TestTokenAndPassword_Constants(t *testing.T) {
	t.Parallel()

	require.Equal(t, "[REDACTED_TOKEN]", Token())
	require.Equal(t, "[REDACTED_PASSWORD]", Password())
}
