package lower_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ascpixi/pyton/internal/bytecode"
	"github.com/ascpixi/pyton/internal/lower"
)

func TestBuildLabelsUnionsJumpTargetsAndExceptionOffsets(t *testing.T) {
	instrs := []bytecode.Instruction{
		{Op: "POP_JUMP_IF_FALSE", Offset: 0, JumpTarget: ptr(10)},
		{Op: "JUMP_BACKWARD", Offset: 4, JumpTarget: ptr(2)},
	}
	excTable := []bytecode.ExceptionEntry{
		{Start: 6, End: 8, Target: 12},
	}

	labels := lower.BuildLabels(instrs, excTable)

	got := map[int]string{}
	for _, offset := range []int{2, 6, 8, 10, 12} {
		if name, ok := labels.At(offset); ok {
			got[offset] = name
		}
	}

	want := map[int]string{2: "L1", 6: "L2", 8: "L3", 10: "L4", 12: "L5"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("label table mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildLabelsOmitsUnreferencedOffsets(t *testing.T) {
	labels := lower.BuildLabels(nil, nil)
	_, ok := labels.At(0)
	if ok {
		t.Fatal("expected no label for an empty instruction/exception table")
	}
}
