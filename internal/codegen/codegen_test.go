package codegen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ascpixi/pyton/internal/bytecode"
	"github.com/ascpixi/pyton/internal/codegen"
	"github.com/ascpixi/pyton/testutil"
)

type stubLoader struct {
	byPath map[string]*bytecode.CodeObject
}

func (s stubLoader) Load(path string) (*bytecode.CodeObject, error) {
	return s.byPath[path], nil
}

func TestTranslateSimpleModule(t *testing.T) {
	fn := &bytecode.CodeObject{
		Name:      "<module>",
		QualName:  "<module>",
		StackSize: 2,
		Consts:    []bytecode.Const{"hello"},
		Names:     []string{"x"},
		Code: bytesFrom(
			pair{"LOAD_CONST", 0},
			pair{"STORE_NAME", 0},
			pair{"LOAD_NAME", 0},
			pair{"RETURN_VALUE", 0},
		),
	}

	tu := codegen.New(stubLoader{byPath: map[string]*bytecode.CodeObject{}})
	name, err := tu.Translate(fn, "main.pyc", "__main__", false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "pyfn__"))
	assert.Contains(t, name, "module")

	out := tu.Transpile(name)
	assert.Contains(t, out, "MODULE_PROLOGUE(__main__);")
	assert.Contains(t, out, "DEFINE_ENTRYPOINT("+name+");")
	assert.Contains(t, out, "pyglobal__x = stack[stack_current--];")
	assert.Contains(t, out, `STR("hello")`)
}

func TestTranslateIsMemoized(t *testing.T) {
	fn := &bytecode.CodeObject{Name: "<module>", QualName: "<module>", Code: bytesFrom(pair{"RETURN_CONST", 0}), Consts: []bytecode.Const{nil}}

	tu := codegen.New(stubLoader{})
	a, err := tu.Translate(fn, "m.pyc", "__main__", false)
	require.NoError(t, err)
	b, err := tu.Translate(fn, "m.pyc", "__main__", false)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, tu.Modules["__main__"].Transpiled, 1)
}

func TestTranspileEmitsExternStub(t *testing.T) {
	fn := &bytecode.CodeObject{
		Name:     "<module>",
		QualName: "<module>",
		Consts:   []bytecode.Const{"x", "return", &bytecode.CodeObject{Name: "foo", QualName: "foo"}},
		Names:    []string{"extern", "int", "bool", "foo"},
		Code: bytesFrom(
			pair{"LOAD_NAME", 0},
			pair{"LOAD_CONST", 0},
			pair{"LOAD_NAME", 1},
			pair{"LOAD_CONST", 1},
			pair{"LOAD_NAME", 2},
			pair{"BUILD_TUPLE", 4},
			pair{"LOAD_CONST", 2},
			pair{"MAKE_FUNCTION", 0},
			pair{"SET_FUNCTION_ATTRIBUTE", 4},
			pair{"CALL", 0},
			pair{"STORE_NAME", 3},
			pair{"RETURN_CONST", 1},
		),
	}

	tu := codegen.New(stubLoader{})
	name, err := tu.Translate(fn, "m.pyc", "__main__", false)
	require.NoError(t, err)

	out := tu.Transpile(name)
	assert.Contains(t, out, "PY_DEFINE(_extern_foo) {")
	assert.Contains(t, out, "static pyobj_t py_extern_foo")
	assert.Contains(t, out, "pyglobal__foo = &py_extern_foo;")
}

// TestTranspileMatchesGoldenFixture checks the emitted translation unit
// against a checked-in golden fixture of expected line fragments, rather
// than the runtime-stamped comparison testutil.CompareWithGolden does —
// MODULE_PROLOGUE/STR output doesn't vary by Go version, OS, or arch, so
// pinning those into the fixture would only make it brittle.
func TestTranspileMatchesGoldenFixture(t *testing.T) {
	fn := &bytecode.CodeObject{
		Name:      "<module>",
		QualName:  "<module>",
		StackSize: 2,
		Consts:    []bytecode.Const{"hello"},
		Names:     []string{"x"},
		Code: bytesFrom(
			pair{"LOAD_CONST", 0},
			pair{"STORE_NAME", 0},
			pair{"LOAD_NAME", 0},
			pair{"RETURN_VALUE", 0},
		),
	}

	tu := codegen.New(stubLoader{byPath: map[string]*bytecode.CodeObject{}})
	name, err := tu.Translate(fn, "main.pyc", "__main__", false)
	require.NoError(t, err)

	out := tu.Transpile(name)

	golden := testutil.LoadGoldenFile(t, "codegen", "transpile_module")
	data, ok := golden.(map[string]interface{})
	require.True(t, ok, "golden fixture must decode to an object")

	lines, ok := data["contains"].([]interface{})
	require.True(t, ok, "golden fixture must have a \"contains\" array")

	for _, l := range lines {
		assert.Contains(t, out, l.(string))
	}
}

// pair and bytesFrom hand-assemble a code object's raw co_code, one
// (mnemonic, operand) pair per codeunit — the same shape
// internal/bytecode.Decode expects to read back.
type pair struct {
	name string
	arg  int
}

func bytesFrom(pairs ...pair) []byte {
	var out []byte
	for _, p := range pairs {
		op, ok := bytecode.Names[p.name]
		if !ok {
			panic("unknown opcode in test: " + p.name)
		}
		out = append(out, byte(op), byte(p.arg))
	}
	return out
}
