package services

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw, code, want string
	}{
		{"3001234567", "92", "+923001234567"},
		{"+44123", "92", "+44123"},
		{"  3001234567 ", "+92", "+923001234567"},
		{"923001234567", "92", "923001234567"},
		{"923001234567", "+92", "923001234567"},
		{"", "92", ""},
		{"   ", "92", ""},
		{"5551234", "", "5551234"},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.raw, tt.code); got != tt.want {
			t.Errorf("NormalizePhone(%q, %q) = %q, want %q", tt.raw, tt.code, got, tt.want)
		}
	}
}
