package grains

import "fmt"

// Remapping describes one pending migration: all field values on
// elements belonging to the grain, currently stored under the From
// label, are copied to the To label and the From values zeroed.
type Remapping struct {
	GrainID int
	From    int
	To      int
}

func (r Remapping) String() string {
	return fmt.Sprintf("grain %d: %d -> %d", r.GrainID, r.From, r.To)
}
