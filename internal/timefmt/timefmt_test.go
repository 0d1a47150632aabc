package timefmt

import (
	"testing"
	"time"
)

func TestHuman(t *testing.T) {
	t.Parallel()
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 seconds"},
		{-5 * time.Second, "0 seconds"},
		{time.Second, "1 second"},
		{45 * time.Second, "45 seconds"},
		{time.Minute, "1 minute"},
		{90 * time.Minute, "1 hour 30 minutes"},
		{time.Hour, "1 hour"},
		{25*time.Hour + 30*time.Second, "1 day 1 hour 30 seconds"},
		{48 * time.Hour, "2 days"},
		{500 * time.Millisecond, "0 seconds"},
	}
	for _, tt := range tests {
		if got := Human(tt.d); got != tt.want {
			t.Errorf("Human(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
