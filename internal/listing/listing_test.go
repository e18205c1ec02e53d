package listing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListingValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Listing
		want bool
	}{
		{"complete", Listing{Title: "Backend Engineer", Company: "Acme"}, true},
		{"missing company", Listing{Title: "Backend Engineer", Link: "https://acme.example/1"}, false},
		{"missing title", Listing{Company: "Acme"}, false},
		{"whitespace only", Listing{Title: "  ", Company: "\t"}, false},
		{"location optional", Listing{Title: "SRE", Company: "Initech", Location: ""}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.in.Valid())
		})
	}
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	t.Parallel()

	in := []Listing{
		{Source: SourceGoogle, Title: "Backend Engineer", Company: "Acme", Link: "https://acme.example/1", Description: "g"},
		{Source: SourceLinkedIn, Title: "Backend Engineer", Company: "Acme", Link: "https://acme.example/2", Description: "richer"},
		{Source: SourceLinkedIn, Title: "Frontend Engineer", Company: "Acme", Link: "https://acme.example/3"},
	}

	out := Dedupe(in)

	require.Len(t, out, 2)
	require.Equal(t, SourceGoogle, out[0].Source)
	require.Equal(t, "https://acme.example/1", out[0].Link)
	require.Equal(t, "g", out[0].Description)
	require.Equal(t, "Frontend Engineer", out[1].Title)
}

func TestDedupeExactEquality(t *testing.T) {
	t.Parallel()

	in := []Listing{
		{Title: "Go Developer", Company: "Acme"},
		{Title: "go developer", Company: "Acme"},
		{Title: "Go Developer", Company: "Acme Inc"},
	}
	require.Len(t, Dedupe(in), 3)
}

func TestDedupeEmptyInput(t *testing.T) {
	t.Parallel()

	require.Empty(t, Dedupe(nil))
	require.NotNil(t, Dedupe(nil))
}

func TestDedupeDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := []Listing{
		{Title: "A", Company: "X"},
		{Title: "A", Company: "X"},
		{Title: "B", Company: "X"},
	}
	snapshot := append([]Listing(nil), in...)
	_ = Dedupe(in)
	require.Equal(t, snapshot, in)
}

func TestDedupeProperties(t *testing.T) {
	t.Parallel()

	titles := []string{"A", "B", "C"}
	companies := []string{"X", "Y"}
	// Deterministic pseudo-random sequences covering repeated keys.
	for seed := 0; seed < 50; seed++ {
		var in []Listing
		for i := 0; i < seed%17+1; i++ {
			n := (seed*31 + i*7) % 97
			in = append(in, Listing{
				Title:   titles[n%len(titles)],
				Company: companies[(n/3)%len(companies)],
				Link:    fmt.Sprintf("https://example.com/%d/%d", seed, i),
			})
		}

		out := Dedupe(in)

		require.LessOrEqual(t, len(out), len(in))
		seen := map[Key]bool{}
		for _, l := range out {
			require.False(t, seen[l.Key()], "duplicate key %v", l.Key())
			seen[l.Key()] = true
		}
		require.Equal(t, out, Dedupe(out), "dedupe must be idempotent")

		// Survivors appear in the same relative order as their first occurrence.
		firstIndex := map[Key]int{}
		for i, l := range in {
			if _, ok := firstIndex[l.Key()]; !ok {
				firstIndex[l.Key()] = i
			}
		}
		for i := 1; i < len(out); i++ {
			require.Less(t, firstIndex[out[i-1].Key()], firstIndex[out[i].Key()])
		}
		for _, l := range out {
			require.Equal(t, in[firstIndex[l.Key()]], l)
		}
	}
}

func TestCountBySource(t *testing.T) {
	t.Parallel()

	counts := CountBySource([]Listing{
		{Source: SourceGoogle},
		{Source: SourceLinkedIn},
		{Source: SourceLinkedIn},
	})
	require.Equal(t, 1, counts[SourceGoogle])
	require.Equal(t, 2, counts[SourceLinkedIn])
}

func FuzzDedupeIdempotent(f *testing.F) {
	f.Add("a", "x", "a", "x")
	f.Add("a", "x", "b", "y")
	f.Fuzz(func(t *testing.T, t1, c1, t2, c2 string) {
		in := []Listing{{Title: t1, Company: c1}, {Title: t2, Company: c2}, {Title: t1, Company: c1}}
		once := Dedupe(in)
		if len(once) > 2 {
			t.Fatalf("expected at most two survivors, got %d", len(once))
		}
		twice := Dedupe(once)
		if len(once) != len(twice) {
			t.Fatalf("dedupe not idempotent: %v vs %v", once, twice)
		}
	})
}
