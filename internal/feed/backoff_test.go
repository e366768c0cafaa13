package feed

import (
	"testing"
	"time"
)

func TestBackoff_Next(t *testing.T) {
	b := Backoff{Min: 100 * time.Millisecond, Max: time.Second, Factor: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{50, time.Second},
	}
	for _, tt := range tests {
		if got := b.Next(tt.attempt); got != tt.want {
			t.Errorf("Next(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_Jitter(t *testing.T) {
	b := Backoff{Min: time.Second, Max: time.Second, Factor: 2, Jitter: 0.2}

	for i := 0; i < 100; i++ {
		got := b.Next(1)
		if got < 800*time.Millisecond || got > 1200*time.Millisecond {
			t.Fatalf("Next(1) = %v, want within 800ms..1200ms", got)
		}
	}
}

func TestBackoff_ZeroValue(t *testing.T) {
	var b Backoff
	if got := b.Next(1); got != 100*time.Millisecond {
		t.Errorf("zero Backoff Next(1) = %v, want 100ms", got)
	}
	if got := b.Next(3); got != 100*time.Millisecond {
		t.Errorf("zero Backoff Next(3) = %v, want 100ms (max clamps to min)", got)
	}
}
