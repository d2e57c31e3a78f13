package clock

import "testing"

func TestClockStartsAtZero(t *testing.T) {
	c := New()
	if c.Now() != 0 {
		t.Fatalf("Now() = %d, want 0", c.Now())
	}
}

func TestAdvanceIsMonotonic(t *testing.T) {
	c := New()
	for i := 1; i <= 5; i++ {
		if got := c.Advance(); got != i {
			t.Fatalf("Advance() = %d, want %d", got, i)
		}
		if c.Now() != i {
			t.Fatalf("Now() = %d, want %d", c.Now(), i)
		}
	}
}
