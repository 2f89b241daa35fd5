package clock

import (
	"testing"
	"time"
)

func TestFakeClock(t *testing.T) {
	start := time.Date(2024, 4, 1, 23, 30, 0, 0, time.UTC)
	fake := Fake(start)

	if !fake.Now().Equal(start) {
		t.Errorf("Expected %s, got %s", start, fake.Now())
	}

	fake.Advance(time.Hour)
	if fake.Now().Day() != 2 {
		t.Errorf("Expected clock to roll into April 2, got %s", fake.Now())
	}

	fake.Set(start)
	if !fake.Now().Equal(start) {
		t.Errorf("Expected %s after Set, got %s", start, fake.Now())
	}
}

func TestRealClock(t *testing.T) {
	before := time.Now()
	now := Real().Now()
	if now.Before(before) {
		t.Errorf("Expected real clock not to run backwards: %s before %s", now, before)
	}
}
