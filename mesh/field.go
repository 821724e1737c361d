package mesh

import "fmt"

// Field is a collection of per-label storage blocks over the active
// elements of a mesh. The first OPOffset blocks belong to fields that
// are not grain labels (e.g. a density variable); block op+OPOffset
// stores order parameter op.
//
// Storage is shared by all ranks; each rank writes only the entries of
// elements it owns, and phases of writes and reads are separated by
// collective synchronization.
type Field struct {
	Name     string
	OPOffset int

	blocks [][]float64
}

// NewField allocates numBlocks storage blocks of numActive entries.
func NewField(name string, numBlocks, opOffset, numActive int) (*Field, error) {
	if numBlocks <= opOffset {
		return nil, fmt.Errorf("field %q: %d blocks cannot carry order parameters behind offset %d",
			name, numBlocks, opOffset)
	}
	f := &Field{
		Name:     name,
		OPOffset: opOffset,
		blocks:   make([][]float64, numBlocks),
	}
	for b := range f.blocks {
		f.blocks[b] = make([]float64, numActive)
	}
	return f, nil
}

// NumBlocks returns the total number of storage blocks.
func (f *Field) NumBlocks() int { return len(f.blocks) }

// NumOrderParameters returns the number of label-carrying blocks.
func (f *Field) NumOrderParameters() int { return len(f.blocks) - f.OPOffset }

// Block returns raw block b.
func (f *Field) Block(b int) []float64 { return f.blocks[b] }

// OPBlock returns the storage block of order parameter op.
func (f *Field) OPBlock(op int) []float64 { return f.blocks[op+f.OPOffset] }

// Sample returns the value of order parameter op on the active element.
func (f *Field) Sample(op, activeIdx int) float64 {
	return f.blocks[op+f.OPOffset][activeIdx]
}
