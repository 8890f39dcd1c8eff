package lower

import (
	"sort"
	"strconv"

	"github.com/ascpixi/pyton/internal/bytecode"
)

// Labels maps bytecode byte offsets to their C goto label, assigned in
// ascending offset order ("L1", "L2", ...). The label set is the union of
// every jump target and every exception-table start/end/target offset —
// exactly what spec.md §4.5 requires so exception regions can be
// delimited even when no opcode jumps there directly.
type Labels struct {
	byOffset map[int]string
}

// BuildLabels computes the label table for one code object's instruction
// stream and exception table.
func BuildLabels(instrs []bytecode.Instruction, excTable []bytecode.ExceptionEntry) Labels {
	set := make(map[int]struct{})

	for _, instr := range instrs {
		if instr.JumpTarget != nil {
			set[*instr.JumpTarget] = struct{}{}
		}
	}
	for _, e := range excTable {
		set[e.Start] = struct{}{}
		set[e.End] = struct{}{}
		set[e.Target] = struct{}{}
	}

	offsets := make([]int, 0, len(set))
	for o := range set {
		offsets = append(offsets, o)
	}
	sort.Ints(offsets)

	byOffset := make(map[int]string, len(offsets))
	for i, o := range offsets {
		byOffset[o] = labelName(i + 1)
	}

	return Labels{byOffset: byOffset}
}

func labelName(n int) string {
	return "L" + strconv.Itoa(n)
}

// At returns the label for a byte offset, and false if nothing jumps
// there and no exception-table entry references it.
func (l Labels) At(offset int) (string, bool) {
	name, ok := l.byOffset[offset]
	return name, ok
}
