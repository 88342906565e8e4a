package calendar

import (
	"errors"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	for _, in := range []string{"09:30", "23:59", "00:00"} {
		c, err := ParseClock(in)
		if err != nil {
			t.Fatalf("ParseClock(%q) error = %v", in, err)
		}
		if c.String() != in {
			t.Fatalf("ParseClock(%q).String() = %q", in, c.String())
		}
	}
	for _, in := range []string{"9:30", "25:00", "09:60", "", "24:00", "09:30:00", "ab:cd"} {
		if _, err := ParseClock(in); !errors.Is(err, ErrInvalidClock) {
			t.Fatalf("ParseClock(%q) error = %v, want ErrInvalidClock", in, err)
		}
	}
}

func TestCombine(t *testing.T) {
	loc := time.FixedZone("X", -5*3600)
	day := time.Date(2024, time.January, 10, 0, 0, 0, 0, loc)
	got := Combine(day, Clock{Hour: 17, Minute: 5})
	want := time.Date(2024, time.January, 10, 17, 5, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("Combine() = %v, want %v", got, want)
	}
}
