package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"
)

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain json untouched", `{"category": "spam"}`, `{"category": "spam"}`},
		{"json fence stripped", "```json\n{\"category\": \"spam\"}\n```", `{"category": "spam"}`},
		{"bare fence stripped", "```\n{\"category\": \"spam\"}\n```", `{"category": "spam"}`},
		{"surrounding whitespace trimmed", "  {\"a\": 1}  ", `{"a": 1}`},
		{"empty input", "", ""},
		{"fence only", "```json\n```", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanJSONResponse(tt.in); got != tt.want {
				t.Errorf("CleanJSONResponse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, true},
		{"object in prose", `Here is the result: {"a": 1}. Hope that helps!`, `{"a": 1}`, true},
		{"nested braces kept", `x {"a": {"b": 2}} y`, `{"a": {"b": 2}}`, true},
		{"no object", "no json here", "", false},
		{"open brace only", "{ unterminated", "", false},
		{"empty input", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ExtractJSON(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	short := "short text"
	if got := tp.TruncateText(short, 100); got != short {
		t.Errorf("text within limit should be unchanged, got %q", got)
	}
	if got := tp.TruncateText(short, 0); got != short {
		t.Errorf("zero limit disables truncation, got %q", got)
	}

	long := strings.Repeat("a", 50)
	got := tp.TruncateText(long, 10)
	if !strings.HasPrefix(got, strings.Repeat("a", 10)) {
		t.Errorf("truncated text should keep the first 10 bytes, got %q", got)
	}
	if !strings.Contains(got, "truncated") {
		t.Errorf("truncated text should carry a truncation marker, got %q", got)
	}
}

func TestTruncateTextKeepsValidUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	// "héllo" with the cut point landing inside the two-byte é
	text := "héllo"
	got := tp.TruncateText(text, 2)
	if !utf8.ValidString(got) {
		t.Errorf("truncation must not produce invalid UTF-8, got %q", got)
	}
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	valid := "already valid ✓"
	if got := tp.SanitizeUTF8(valid); got != valid {
		t.Errorf("valid input should be unchanged, got %q", got)
	}

	invalid := "bad\xff\xfebytes"
	got := tp.SanitizeUTF8(invalid)
	if !utf8.ValidString(got) {
		t.Errorf("sanitized output must be valid UTF-8, got %q", got)
	}
	if !strings.Contains(got, "bad") || !strings.Contains(got, "bytes") {
		t.Errorf("valid runes should survive sanitization, got %q", got)
	}
}
