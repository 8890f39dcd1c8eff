package imports_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ascpixi/pyton/internal/bytecode"
	"github.com/ascpixi/pyton/internal/imports"
)

func arg(v int) *int { return &v }

func TestScanSelectiveImport(t *testing.T) {
	// from something import abc, cba as aaa
	fn := &bytecode.CodeObject{
		Consts: []bytecode.Const{int64(0), bytecode.Tuple{"abc", "cba"}},
		Names:  []string{"something", "abc", "aaa", "cba"},
	}

	instrs := []bytecode.Instruction{
		{Op: "LOAD_CONST", Arg: arg(0), Offset: 0},
		{Op: "LOAD_CONST", Arg: arg(1), Offset: 2},
		{Op: "IMPORT_NAME", Arg: arg(0), Offset: 4},
		{Op: "IMPORT_FROM", Arg: arg(1), Offset: 6},
		{Op: "STORE_NAME", Arg: arg(1), Offset: 8},
		{Op: "IMPORT_FROM", Arg: arg(3), Offset: 10},
		{Op: "STORE_NAME", Arg: arg(2), Offset: 12},
		{Op: "POP_TOP", Offset: 14},
	}

	result, err := imports.Scan(fn, instrs)
	require.NoError(t, err)
	require.Len(t, result, 1)

	imp := result[0]
	assert.Equal(t, imports.Selective, imp.Kind)
	assert.Equal(t, "something", imp.Name)
	require.Len(t, imp.Targets, 2)
	assert.Equal(t, imports.Target{Origin: "abc", Alias: "abc"}, imp.Targets[0])
	assert.Equal(t, imports.Target{Origin: "cba", Alias: "aaa"}, imp.Targets[1])
	assert.Equal(t, 0, imp.Start)
	assert.Equal(t, 7, imp.End)
}

func TestScanFullImportRecognizedButRejectedByCaller(t *testing.T) {
	fn := &bytecode.CodeObject{
		Consts: []bytecode.Const{int64(0), nil},
		Names:  []string{"something"},
	}

	instrs := []bytecode.Instruction{
		{Op: "LOAD_CONST", Arg: arg(0), Offset: 0},
		{Op: "LOAD_CONST", Arg: arg(1), Offset: 2},
		{Op: "IMPORT_NAME", Arg: arg(0), Offset: 4},
		{Op: "STORE_NAME", Arg: arg(0), Offset: 6},
	}

	result, err := imports.Scan(fn, instrs)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, imports.Full, result[0].Kind)
	assert.Equal(t, "something", result[0].Alias)
}

func TestScanRelativeImportUnsupported(t *testing.T) {
	fn := &bytecode.CodeObject{
		Consts: []bytecode.Const{int64(1), nil},
		Names:  []string{"something"},
	}

	instrs := []bytecode.Instruction{
		{Op: "LOAD_CONST", Arg: arg(0), Offset: 0},
		{Op: "LOAD_CONST", Arg: arg(1), Offset: 2},
		{Op: "IMPORT_NAME", Arg: arg(0), Offset: 4},
		{Op: "STORE_NAME", Arg: arg(0), Offset: 6},
	}

	_, err := imports.Scan(fn, instrs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relative imports")
}

func TestScanUnrecognizedShapeFails(t *testing.T) {
	fn := &bytecode.CodeObject{
		Consts: []bytecode.Const{int64(0), nil},
		Names:  []string{"something"},
	}

	instrs := []bytecode.Instruction{
		{Op: "LOAD_CONST", Arg: arg(0), Offset: 0},
		{Op: "LOAD_CONST", Arg: arg(1), Offset: 2},
		{Op: "IMPORT_NAME", Arg: arg(0), Offset: 4},
		{Op: "POP_TOP", Offset: 6}, // neither full nor selective shape
	}

	_, err := imports.Scan(fn, instrs)
	assert.Error(t, err)
}
