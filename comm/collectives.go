package comm

import "fmt"

// ExScanInt returns the exclusive prefix sum of v over ranks: rank r
// receives the sum of the contributions of ranks 0..r-1 (zero on rank 0).
func (c *Comm) ExScanInt(v int) int {
	c.post(v)
	sum := 0
	for r := 0; r < c.rank; r++ {
		sum += c.group.slots[r].(int)
	}
	c.finish()
	return sum
}

// AllReduceIntSum returns the sum of v over all ranks.
func (c *Comm) AllReduceIntSum(v int) int {
	c.post(v)
	sum := 0
	for r := 0; r < c.Size(); r++ {
		sum += c.group.slots[r].(int)
	}
	c.finish()
	return sum
}

// AllReduceIntMax returns the maximum of v over all ranks.
func (c *Comm) AllReduceIntMax(v int) int {
	c.post(v)
	max := c.group.slots[0].(int)
	for r := 1; r < c.Size(); r++ {
		if m := c.group.slots[r].(int); m > max {
			max = m
		}
	}
	c.finish()
	return max
}

// AllReduceBoolAnd returns true iff every rank contributed true.
func (c *Comm) AllReduceBoolAnd(v bool) bool {
	c.post(v)
	all := true
	for r := 0; r < c.Size(); r++ {
		all = all && c.group.slots[r].(bool)
	}
	c.finish()
	return all
}

// AllReduceBoolOr returns true iff any rank contributed true.
func (c *Comm) AllReduceBoolOr(v bool) bool {
	c.post(v)
	any := false
	for r := 0; r < c.Size(); r++ {
		any = any || c.group.slots[r].(bool)
	}
	c.finish()
	return any
}

// AllReduceFloatSum returns the element-wise sum of equally sized
// slices contributed by all ranks. Contributions are accumulated in
// rank order so all ranks compute bit-identical sums.
func (c *Comm) AllReduceFloatSum(v []float64) []float64 {
	c.post(v)
	out := make([]float64, len(v))
	for r := 0; r < c.Size(); r++ {
		contrib := c.group.slots[r].([]float64)
		if len(contrib) != len(out) {
			panic(fmt.Sprintf("comm: reduce length mismatch: rank %d contributed %d, expected %d",
				r, len(contrib), len(out)))
		}
		for i, x := range contrib {
			out[i] += x
		}
	}
	c.finish()
	return out
}

// AllReduceFloatMax returns the element-wise maximum of equally sized
// slices contributed by all ranks.
func (c *Comm) AllReduceFloatMax(v []float64) []float64 {
	c.post(v)
	out := make([]float64, len(v))
	copy(out, c.group.slots[0].([]float64))
	for r := 1; r < c.Size(); r++ {
		contrib := c.group.slots[r].([]float64)
		if len(contrib) != len(out) {
			panic(fmt.Sprintf("comm: reduce length mismatch: rank %d contributed %d, expected %d",
				r, len(contrib), len(out)))
		}
		for i, x := range contrib {
			if x > out[i] {
				out[i] = x
			}
		}
	}
	c.finish()
	return out
}

// AllGather collects one value per rank, ordered by rank.
func AllGather[T any](c *Comm, v T) []T {
	c.post(v)
	out := make([]T, c.Size())
	for r := 0; r < c.Size(); r++ {
		out[r] = c.group.slots[r].(T)
	}
	c.finish()
	return out
}

// Broadcast distributes the root rank's value to every rank.
func Broadcast[T any](c *Comm, root int, v T) T {
	c.post(v)
	out := c.group.slots[root].(T)
	c.finish()
	return out
}

// Exchange performs a sparse all-to-all: out maps destination rank to
// the payload addressed to it. The result is indexed by source rank;
// entries from ranks that sent nothing are nil. Payloads are shared by
// reference: a sender must not mutate them after the call returns.
func Exchange[T any](c *Comm, out map[int][]T) [][]T {
	c.post(out)
	in := make([][]T, c.Size())
	for r := 0; r < c.Size(); r++ {
		sent := c.group.slots[r].(map[int][]T)
		if payload, ok := sent[c.rank]; ok {
			in[r] = payload
		}
	}
	c.finish()
	return in
}
