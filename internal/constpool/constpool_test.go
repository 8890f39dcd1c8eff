package constpool_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ascpixi/pyton/internal/bytecode"
	"github.com/ascpixi/pyton/internal/constpool"
)

func arg(v int) *int { return &v }

type stubTranslator struct {
	name string
	err  error
}

func (s stubTranslator) Translate(fn *bytecode.CodeObject, sourcePath, module string, isClassBody bool) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.name, nil
}

func TestInternBoolAndNone(t *testing.T) {
	p := constpool.New()

	sym, err := p.Intern(true, nil, nil, "", "", stubTranslator{})
	require.NoError(t, err)
	assert.Equal(t, "py_true", sym)

	sym, err = p.Intern(false, nil, nil, "", "", stubTranslator{})
	require.NoError(t, err)
	assert.Equal(t, "py_false", sym)

	sym, err = p.Intern(nil, nil, nil, "", "", stubTranslator{})
	require.NoError(t, err)
	assert.Equal(t, "py_none", sym)

	assert.Empty(t, p.Definitions)
}

func TestInternStringIsMemoized(t *testing.T) {
	p := constpool.New()

	a, err := p.Intern("hello", nil, nil, "", "", stubTranslator{})
	require.NoError(t, err)

	b, err := p.Intern("hello", nil, nil, "", "", stubTranslator{})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, p.Definitions, 1)
	assert.Contains(t, p.Definitions[0], `STR("hello")`)
}

func TestInternStringEscapesNewline(t *testing.T) {
	p := constpool.New()

	_, err := p.Intern("a\r\nb", nil, nil, "", "", stubTranslator{})
	require.NoError(t, err)
	assert.Contains(t, p.Definitions[0], `a\nb`)
}

func TestInternDistinctIntsGetDistinctSymbols(t *testing.T) {
	p := constpool.New()

	a, err := p.Intern(int64(1), nil, nil, "", "", stubTranslator{})
	require.NoError(t, err)
	b, err := p.Intern(int64(2), nil, nil, "", "", stubTranslator{})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, p.Definitions, 2)
}

func TestInternTupleRecursesAndEmitsElements(t *testing.T) {
	p := constpool.New()

	sym, err := p.Intern(bytecode.Tuple{int64(1), "two"}, nil, nil, "", "", stubTranslator{})
	require.NoError(t, err)

	joined := ""
	for _, d := range p.Definitions {
		joined += d + "\n"
	}

	assert.Contains(t, joined, sym+"_elements")
	assert.Contains(t, joined, ".type = &py_type_tuple")
	assert.Contains(t, joined, ".length = 2")
}

func TestInternCodeObjectTranslatesAndMemoizesByIdentity(t *testing.T) {
	p := constpool.New()
	co := &bytecode.CodeObject{Name: "foo", QualName: "foo"}

	tr := stubTranslator{name: "pyfn__mod_foo"}

	a, err := p.Intern(co, nil, &bytecode.CodeObject{}, "mod.py", "mod", tr)
	require.NoError(t, err)
	assert.Contains(t, p.Definitions[len(p.Definitions)-1], "pyfn__mod_foo")

	b, err := p.Intern(co, nil, &bytecode.CodeObject{}, "mod.py", "mod", tr)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestClassBodyDetectedViaLoadBuildClass(t *testing.T) {
	p := constpool.New()
	classBody := &bytecode.CodeObject{Name: "Foo", QualName: "Foo"}

	enclosing := &bytecode.CodeObject{
		Consts: []bytecode.Const{classBody},
	}
	instrs := []bytecode.Instruction{
		{Op: "LOAD_BUILD_CLASS", Offset: 0},
		{Op: "LOAD_CONST", Arg: arg(0), Offset: 2},
	}

	var gotClassBody bool
	tr := translatorFunc(func(fn *bytecode.CodeObject, sourcePath, module string, isClassBody bool) (string, error) {
		gotClassBody = isClassBody
		return "pyfn__mod_Foo", nil
	})

	_, err := p.Intern(classBody, instrs, enclosing, "mod.py", "mod", tr)
	require.NoError(t, err)
	assert.True(t, gotClassBody)
}

func TestRegularFunctionNotClassifiedAsClassBody(t *testing.T) {
	p := constpool.New()
	fnBody := &bytecode.CodeObject{Name: "foo", QualName: "foo"}

	enclosing := &bytecode.CodeObject{
		Consts: []bytecode.Const{fnBody},
	}
	instrs := []bytecode.Instruction{
		{Op: "LOAD_CONST", Arg: arg(0), Offset: 0},
	}

	var gotClassBody bool
	tr := translatorFunc(func(fn *bytecode.CodeObject, sourcePath, module string, isClassBody bool) (string, error) {
		gotClassBody = isClassBody
		return "pyfn__mod_foo", nil
	})

	_, err := p.Intern(fnBody, instrs, enclosing, "mod.py", "mod", tr)
	require.NoError(t, err)
	assert.False(t, gotClassBody)
}

func TestUnknownConstantTypeFails(t *testing.T) {
	p := constpool.New()
	_, err := p.Intern(uint8(1), nil, &bytecode.CodeObject{QualName: "mod"}, "", "", stubTranslator{})
	assert.Error(t, err)
}

type translatorFunc func(fn *bytecode.CodeObject, sourcePath, module string, isClassBody bool) (string, error)

func (f translatorFunc) Translate(fn *bytecode.CodeObject, sourcePath, module string, isClassBody bool) (string, error) {
	return f(fn, sourcePath, module, isClassBody)
}
