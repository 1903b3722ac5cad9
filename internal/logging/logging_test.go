package logging

import "testing"

func TestNew(t *testing.T) {
	if _, err := New("debug", "console"); err != nil {
		t.Fatalf("New(debug, console) = %v", err)
	}
	if _, err := New("info", "json"); err != nil {
		t.Fatalf("New(info, json) = %v", err)
	}
	if _, err := New("loud", "json"); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
