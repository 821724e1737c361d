package grains

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// ActiveOrderParameterIDs returns the sorted set of order parameters in
// use by the given grains.
func ActiveOrderParameterIDs(all map[int]*Grain) []int {
	seen := make(map[int]struct{})
	for _, g := range all {
		seen[g.OrderParameter()] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for op := range seen {
		out = append(out, op)
	}
	sort.Ints(out)
	return out
}

// OldOrderParameterIDs returns the sorted set of old order parameters
// recorded by the given grains.
func OldOrderParameterIDs(all map[int]*Grain) []int {
	seen := make(map[int]struct{})
	for _, g := range all {
		seen[g.OldOrderParameter()] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for op := range seen {
		out = append(out, op)
	}
	sort.Ints(out)
	return out
}

// PrintGrain writes a single grain and its segments.
func PrintGrain(w io.Writer, g *Grain) {
	fmt.Fprintf(w, "op_index_current = %d | op_index_old = %d | segments = %d | grain_index = %d\n",
		g.OrderParameter(), g.OldOrderParameter(), g.NumSegments(), g.ID())
	for _, s := range g.Segments() {
		fmt.Fprintf(w, "    segment: center = (%g, %g, %g) | radius = %g\n",
			s.Center.X, s.Center.Y, s.Center.Z, s.Radius)
	}
}

// PrintGrains writes all grains in ascending id order.
func PrintGrains(w io.Writer, all map[int]*Grain) {
	fmt.Fprintf(w, "Number of order parameters: %d\n", len(ActiveOrderParameterIDs(all)))
	fmt.Fprintf(w, "Number of grains: %d\n", len(all))
	for _, id := range sortedIDs(all) {
		PrintGrain(w, all[id])
	}
}

// PrintGrainsInvariant writes all grains ordered by the coordinates of
// their segments instead of their ids, so outputs of runs with
// different id numbering can be compared directly.
func PrintGrainsInvariant(w io.Writer, all map[int]*Grain) {
	type entry struct {
		grain    *Grain
		segOrder []int
	}
	entries := make([]entry, 0, len(all))
	for _, id := range sortedIDs(all) {
		g := all[id]
		order := make([]int, g.NumSegments())
		for i := range order {
			order[i] = i
		}
		segs := g.Segments()
		sort.Slice(order, func(a, b int) bool {
			return centerLess(segs[order[a]].Center, segs[order[b]].Center)
		})
		entries = append(entries, entry{grain: g, segOrder: order})
	}

	sort.Slice(entries, func(a, b int) bool {
		sa := entries[a].grain.Segments()[entries[a].segOrder[0]]
		sb := entries[b].grain.Segments()[entries[b].segOrder[0]]
		return centerLess(sa.Center, sb.Center)
	})

	fmt.Fprintf(w, "Number of order parameters: %d\n", len(ActiveOrderParameterIDs(all)))
	fmt.Fprintf(w, "Number of grains: %d\n", len(all))
	for _, e := range entries {
		fmt.Fprintf(w, "op_index_current = %d | op_index_old = %d | segments = %d\n",
			e.grain.OrderParameter(), e.grain.OldOrderParameter(), e.grain.NumSegments())
		for _, si := range e.segOrder {
			s := e.grain.Segments()[si]
			fmt.Fprintf(w, "    segment: center = (%g, %g, %g) | radius = %g\n",
				s.Center.X, s.Center.Y, s.Center.Z, s.Radius)
		}
	}
}

func sortedIDs(all map[int]*Grain) []int {
	ids := make([]int, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func centerLess(a, b r3.Vec) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}
