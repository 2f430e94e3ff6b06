package cache

import (
	"testing"
	"time"
)

func TestEntry_StateAt(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		entry *Entry
		want  State
	}{
		{name: "nil", entry: nil, want: Miss},
		{name: "inside window", entry: &Entry{FreshUntil: now.Add(time.Second)}, want: Fresh},
		{name: "expired with etag", entry: &Entry{ETag: `"e1"`, FreshUntil: now.Add(-time.Second)}, want: Stale},
		{name: "expired without etag", entry: &Entry{FreshUntil: now.Add(-time.Second)}, want: Miss},
		{name: "window boundary", entry: &Entry{ETag: `"e1"`, FreshUntil: now}, want: Stale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.stateAt(now); got != tt.want {
				t.Errorf("stateAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{Miss: "miss", Stale: "stale", Fresh: "fresh"} {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
}
