package domain

import (
	"testing"
	"time"
)

func TestDaysSince(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"same instant", created, 0},
		{"one minute", created.Add(time.Minute), 1},
		{"exactly one day", created.Add(24 * time.Hour), 1},
		{"one day and a second", created.Add(24*time.Hour + time.Second), 2},
		{"ten days", created.Add(240 * time.Hour), 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysSince(created, tt.now); got != tt.want {
				t.Errorf("DaysSince() = %d, want %d", got, tt.want)
			}
		})
	}
}
