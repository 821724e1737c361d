package comm

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestIntCollectives(t *testing.T) {
	const n = 4
	err := Run(n, func(c *Comm) error {
		if got, want := c.ExScanInt(c.Rank()+1), c.Rank()*(c.Rank()+1)/2; got != want {
			return fmt.Errorf("rank %d: ExScanInt = %d, want %d", c.Rank(), got, want)
		}
		if got := c.AllReduceIntSum(1); got != n {
			return fmt.Errorf("rank %d: AllReduceIntSum = %d, want %d", c.Rank(), got, n)
		}
		if got := c.AllReduceIntMax(c.Rank()); got != n-1 {
			return fmt.Errorf("rank %d: AllReduceIntMax = %d, want %d", c.Rank(), got, n-1)
		}
		if c.AllReduceBoolAnd(c.Rank() != 1) {
			return fmt.Errorf("rank %d: AllReduceBoolAnd should be false", c.Rank())
		}
		if !c.AllReduceBoolOr(c.Rank() == 1) {
			return fmt.Errorf("rank %d: AllReduceBoolOr should be true", c.Rank())
		}
		return nil
	})
	require.NoError(t, err)
}

func TestFloatReductions(t *testing.T) {
	const n = 3
	err := Run(n, func(c *Comm) error {
		sum := c.AllReduceFloatSum([]float64{1, float64(c.Rank())})
		if diff := cmp.Diff([]float64{3, 3}, sum); diff != "" {
			return fmt.Errorf("rank %d: sum mismatch:\n%s", c.Rank(), diff)
		}
		max := c.AllReduceFloatMax([]float64{float64(c.Rank()), -float64(c.Rank())})
		if diff := cmp.Diff([]float64{2, 0}, max); diff != "" {
			return fmt.Errorf("rank %d: max mismatch:\n%s", c.Rank(), diff)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestGatherBroadcastExchange(t *testing.T) {
	const n = 4
	err := Run(n, func(c *Comm) error {
		gathered := AllGather(c, c.Rank()*10)
		for r, v := range gathered {
			if v != r*10 {
				return fmt.Errorf("rank %d: AllGather[%d] = %d", c.Rank(), r, v)
			}
		}

		if got := Broadcast(c, 2, c.Rank()); got != 2 {
			return fmt.Errorf("rank %d: Broadcast = %d, want 2", c.Rank(), got)
		}

		// Ring exchange: each rank addresses its successor.
		next := (c.Rank() + 1) % n
		in := Exchange(c, map[int][]int{next: {c.Rank(), c.Rank() * 100}})
		prev := (c.Rank() + n - 1) % n
		for r, payload := range in {
			if r == prev {
				if diff := cmp.Diff([]int{prev, prev * 100}, payload); diff != "" {
					return fmt.Errorf("rank %d: payload mismatch:\n%s", c.Rank(), diff)
				}
				continue
			}
			if payload != nil {
				return fmt.Errorf("rank %d: unexpected payload from rank %d", c.Rank(), r)
			}
		}

		// An empty exchange must still be collective-safe.
		for _, payload := range Exchange(c, map[int][]int{}) {
			if payload != nil {
				return fmt.Errorf("rank %d: empty exchange delivered data", c.Rank())
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestBarrierReuse(t *testing.T) {
	err := Run(3, func(c *Comm) error {
		for i := 0; i < 100; i++ {
			c.Barrier()
			if got := c.AllReduceIntSum(i); got != 3*i {
				return fmt.Errorf("rank %d iteration %d: got %d", c.Rank(), i, got)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRunPropagatesError(t *testing.T) {
	err := Run(2, func(c *Comm) error {
		if c.Rank() == 1 {
			return fmt.Errorf("rank 1 failed")
		}
		return nil
	})
	require.Error(t, err)
}

func TestGroupValidation(t *testing.T) {
	_, err := NewGroup(0)
	require.Error(t, err)

	g, err := NewGroup(2)
	require.NoError(t, err)
	_, err = g.Comm(2)
	require.Error(t, err)
}
