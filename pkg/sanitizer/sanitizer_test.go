package sanitizer

import (
	"reflect"
	"testing"
)

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Downtown Garage", "Downtown Garage"},
		{"leading and trailing", "  Downtown Garage  ", "Downtown Garage"},
		{"collapses inner whitespace", "Downtown \t  Garage", "Downtown Garage"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimAndNormalize(tt.input); got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeAmenities(t *testing.T) {
	got := NormalizeAmenities([]string{" Covered ", "covered", "VALET", "", "security"})
	want := []string{"covered", "valet", "security"}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeAmenities() = %v, want %v", got, want)
	}
}

func TestEscapeRegex(t *testing.T) {
	// A pattern like this going into the store unescaped would backtrack
	// exponentially; escaped, it only matches the literal text.
	malicious := "(a+)+b"
	escaped := EscapeRegex(malicious)

	if escaped == malicious {
		t.Errorf("EscapeRegex did not quote metacharacters: %q", escaped)
	}
	if escaped != `\(a\+\)\+b` {
		t.Errorf("EscapeRegex(%q) = %q", malicious, escaped)
	}
}
