package ui

import "testing"

func TestStyle(t *testing.T) {
	prev := Enabled()
	defer SetEnabled(prev)

	SetEnabled(true)
	if got := Bold("x"); got != ColorBold+"x"+ColorReset {
		t.Errorf("Expected bold x, got %q", got)
	}
	if got := Info("x"); got != ColorDim+ColorYellow+"x"+ColorReset {
		t.Errorf("Expected dim yellow x, got %q", got)
	}
	if got := Style("x"); got != "x" {
		t.Errorf("Expected no codes to leave x unchanged, got %q", got)
	}

	SetEnabled(false)
	if got := Error("x"); got != "x" {
		t.Errorf("Expected plain x when disabled, got %q", got)
	}
}
