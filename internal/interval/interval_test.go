package interval

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return base.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func iv(h1, m1, h2, m2 int) Interval {
	return New(at(h1, m1), at(h2, m2))
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"disjoint", iv(9, 0, 10, 0), iv(11, 0, 12, 0), false},
		{"touching endpoints", iv(14, 0, 15, 0), iv(15, 0, 16, 0), false},
		{"partial", iv(14, 0, 15, 0), iv(14, 30, 15, 30), true},
		{"contained", iv(8, 0, 20, 0), iv(9, 0, 10, 0), true},
		{"identical", iv(9, 0, 10, 0), iv(9, 0, 10, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a), "symmetric")
		})
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		in   []Interval
		want []Interval
	}{
		{"empty", nil, nil},
		{"unsorted disjoint", []Interval{iv(12, 0, 13, 0), iv(9, 0, 10, 0)}, []Interval{iv(9, 0, 10, 0), iv(12, 0, 13, 0)}},
		{"touching coalesce", []Interval{iv(9, 0, 10, 0), iv(10, 0, 11, 0)}, []Interval{iv(9, 0, 11, 0)}},
		{"overlapping chain", []Interval{iv(9, 0, 10, 30), iv(10, 0, 11, 0), iv(10, 45, 12, 0)}, []Interval{iv(9, 0, 12, 0)}},
		{"nested", []Interval{iv(8, 0, 20, 0), iv(9, 0, 10, 0)}, []Interval{iv(8, 0, 20, 0)}},
		{"drops empty", []Interval{iv(9, 0, 9, 0), iv(10, 0, 11, 0)}, []Interval{iv(10, 0, 11, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.in))
		})
	}
}

func TestSubtract(t *testing.T) {
	universe := iv(8, 0, 20, 0)
	tests := []struct {
		name     string
		occupied []Interval
		want     []Interval
	}{
		{"nothing occupied", nil, []Interval{universe}},
		{"fully covered", []Interval{iv(7, 0, 21, 0)}, nil},
		{"one hole", []Interval{iv(9, 0, 10, 0)}, []Interval{iv(8, 0, 9, 0), iv(10, 0, 20, 0)}},
		{"occupied at edges", []Interval{iv(7, 0, 9, 0), iv(19, 0, 22, 0)}, []Interval{iv(9, 0, 19, 0)}},
		{"unsorted and touching", []Interval{iv(12, 0, 13, 0), iv(11, 0, 12, 0)}, []Interval{iv(8, 0, 11, 0), iv(13, 0, 20, 0)}},
		{"outside universe ignored", []Interval{iv(1, 0, 2, 0), iv(21, 0, 22, 0)}, []Interval{universe}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Subtract(universe, tt.occupied))
		})
	}
}

func TestClip(t *testing.T) {
	got, ok := Clip(iv(7, 0, 9, 0), iv(8, 0, 20, 0))
	require.True(t, ok)
	assert.Equal(t, iv(8, 0, 9, 0), got)

	_, ok = Clip(iv(6, 0, 8, 0), iv(8, 0, 20, 0))
	assert.False(t, ok, "touching is disjoint")

	got, ok = Clip(iv(9, 0, 10, 0), iv(8, 0, 20, 0))
	require.True(t, ok)
	assert.Equal(t, iv(9, 0, 10, 0), got)
}

func TestIntersect(t *testing.T) {
	tests := []struct {
		name string
		a, b []Interval
		want []Interval
	}{
		{name: "empty side", a: []Interval{iv(8, 0, 9, 0)}, b: nil, want: nil},
		{name: "one spans many", a: []Interval{iv(0, 0, 23, 0)}, b: []Interval{iv(1, 0, 2, 0), iv(5, 0, 6, 0)}, want: []Interval{iv(1, 0, 2, 0), iv(5, 0, 6, 0)}},
		{name: "staggered", a: []Interval{iv(7, 0, 9, 0), iv(10, 0, 12, 0)}, b: []Interval{iv(8, 0, 11, 0)}, want: []Interval{iv(8, 0, 9, 0), iv(10, 0, 11, 0)}},
		{name: "touching only", a: []Interval{iv(7, 0, 8, 0)}, b: []Interval{iv(8, 0, 9, 0)}, want: nil},
		{name: "equal ends", a: []Interval{iv(7, 0, 9, 0), iv(9, 30, 10, 0)}, b: []Interval{iv(8, 0, 9, 0), iv(9, 0, 10, 0)}, want: []Interval{iv(8, 0, 9, 0), iv(9, 30, 10, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Intersect(tt.a, tt.b))
		})
	}
}

// Intersect agrees with clipping every pair.
func TestIntersect_MatchesPairwiseClip(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	randomSet := func() []Interval {
		var list []Interval
		for range r.IntN(8) {
			start := r.IntN(20 * 60)
			list = append(list, New(base.Add(time.Duration(start)*time.Minute), base.Add(time.Duration(start+1+r.IntN(180))*time.Minute)))
		}
		return Merge(list)
	}
	for range 200 {
		a, b := randomSet(), randomSet()
		var want []Interval
		for _, x := range a {
			for _, y := range b {
				if c, ok := Clip(x, y); ok {
					want = append(want, c)
				}
			}
		}
		assert.Equal(t, want, Intersect(a, b))
	}
}

// Gaps plus occupied pieces reconstruct the universe exactly once.
func TestSubtract_ReconstructsUniverse(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	universe := iv(0, 0, 24, 0)
	for round := 0; round < 200; round++ {
		var occupied []Interval
		for n := rng.IntN(8); n > 0; n-- {
			start := rng.IntN(26*60) - 60
			length := 1 + rng.IntN(180)
			occupied = append(occupied, New(base.Add(time.Duration(start)*time.Minute), base.Add(time.Duration(start+length)*time.Minute)))
		}

		gaps := Subtract(universe, occupied)
		for i := 1; i < len(gaps); i++ {
			require.True(t, gaps[i-1].End.Before(gaps[i].Start), "gaps sorted, non-touching")
		}

		var covered []Interval
		covered = append(covered, gaps...)
		for _, o := range Merge(occupied) {
			if c, ok := Clip(o, universe); ok {
				for _, g := range gaps {
					require.False(t, Overlaps(c, g), "no double coverage")
				}
				covered = append(covered, c)
			}
		}
		assert.Equal(t, []Interval{universe}, Merge(covered))
	}
}
