package cleanup

import (
	"fmt"
	"testing"
)

func TestLimitCandidates(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		max        int
		want       []string
	}{
		{
			name: "empty in, nil out",
			max:  10,
			want: nil,
		},
		{
			name:       "under the cap passes through",
			candidates: []string{"c", "a", "b"},
			max:        3,
			want:       []string{"c", "a", "b"},
		},
		{
			name:       "over the cap keeps the lexicographically smallest",
			candidates: []string{"d", "b", "e", "a", "c"},
			max:        2,
			want:       []string{"a", "b"},
		},
		{
			name:       "zero cap accepts nothing",
			candidates: []string{"a", "b"},
			max:        0,
			want:       []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := limitCandidates(tt.candidates, tt.max)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("limitCandidates(%v, %d) = %v, want %v", tt.candidates, tt.max, got, tt.want)
			}
		})
	}
}

func TestLimitCandidatesLeavesInputUntouched(t *testing.T) {
	candidates := []string{"d", "b", "e", "a", "c"}

	got := limitCandidates(candidates, 2)
	if fmt.Sprint(got) != fmt.Sprint([]string{"a", "b"}) {
		t.Fatalf("limitCandidates = %v, want [a b]", got)
	}
	if fmt.Sprint(candidates) != fmt.Sprint([]string{"d", "b", "e", "a", "c"}) {
		t.Errorf("caller's slice was reordered: %v", candidates)
	}
}

func TestLimitCandidatesIsDeterministic(t *testing.T) {
	// The same backlog under the same cap must yield the same subset, so
	// repeated runs drain it instead of bouncing between choices.
	first := limitCandidates([]string{"c", "a", "d", "b"}, 2)
	second := limitCandidates([]string{"b", "d", "a", "c"}, 2)
	if fmt.Sprint(first) != fmt.Sprint(second) {
		t.Errorf("cap is order-sensitive: %v vs %v", first, second)
	}
}
