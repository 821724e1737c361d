package tracker

import (
	"sort"

	"github.com/notargets/GrainKernel/comm"
)

// flushLog gathers the per-rank event lines, drops duplicates (most
// events are observed identically on every rank), and emits the sorted
// set once through rank 0's logger. Collective.
func (t *Tracker) flushLog(lines []string) {
	all := comm.AllGather(t.comm, lines)
	if t.comm.Rank() != 0 {
		return
	}
	seen := map[string]struct{}{}
	var uniq []string
	for _, part := range all {
		for _, l := range part {
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			uniq = append(uniq, l)
		}
	}
	sort.Strings(uniq)
	for _, l := range uniq {
		t.log.Info(l)
	}
}
