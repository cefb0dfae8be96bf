package whitelist

import (
	"testing"

	"go.uber.org/zap"
)

func TestIsTrusted(t *testing.T) {
	checker := NewChecker([]string{"Example.com", " trusted.org "}, zap.NewNop())

	tests := []struct {
		name   string
		sender string
		want   bool
	}{
		{"exact match", "alice@example.com", true},
		{"case insensitive domain", "alice@EXAMPLE.COM", true},
		{"whitespace trimmed at construction", "bob@trusted.org", true},
		{"unlisted domain", "carol@other.com", false},
		{"subdomain is not trusted", "dave@mail.example.com", false},
		{"no at sign", "not-an-address", false},
		{"multiple at signs", "a@b@example.com", false},
		{"empty sender", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsTrusted(tt.sender); got != tt.want {
				t.Errorf("IsTrusted(%q) = %v, want %v", tt.sender, got, tt.want)
			}
		})
	}
}

func TestIsTrustedEmptyList(t *testing.T) {
	checker := NewChecker(nil, zap.NewNop())
	if checker.IsTrusted("alice@example.com") {
		t.Error("empty trusted list should never match")
	}
}
