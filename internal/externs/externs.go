// Package externs implements the @extern decorator scanner of spec.md
// §4.2: it recognizes the bytecode footprint an `@extern`-annotated
// function definition leaves, extracts its parameter/return interop
// types, and generates the C marshalling stub that crosses the FFI
// boundary.
package externs

import (
	"fmt"
	"strings"

	"github.com/ascpixi/pyton/internal/bytecode"
	"github.com/ascpixi/pyton/internal/diag"
)

// InteropType is one of the six tags describing how a value crosses the
// FFI boundary.
type InteropType int

const (
	Int InteropType = iota
	String
	Float
	Bool
	None
	Obj
)

func (t InteropType) cType() string {
	switch t {
	case Int:
		return "int64_t"
	case String:
		return "string_t"
	case Float:
		return "double"
	case Bool:
		return "bool"
	case None:
		return "void"
	default:
		return "pyobj_t*"
	}
}

func interopTypeOf(name string, isNone bool) InteropType {
	if isNone {
		return None
	}
	switch name {
	case "int":
		return Int
	case "str":
		return String
	case "float":
		return Float
	case "bool":
		return Bool
	default:
		return Obj
	}
}

// Param is one declared parameter name/type pair, in declaration order.
type Param struct {
	Name string
	Type InteropType
}

// Spec is the full extracted specification of one @extern function.
type Spec struct {
	Symbol     string
	Params     []Param
	ReturnType InteropType
}

// CName is the PY_DEFINE symbol of the marshalling stub wrapping Symbol.
func (s Spec) CName() string { return "_extern_" + s.Symbol }

// Extern is one occurrence of an @extern definition in a code object's
// top-level instructions.
type Extern struct {
	Start int
	End   int
	Spec  Spec
}

// Scan finds every @extern definition in fn's top-level instructions.
func Scan(fn *bytecode.CodeObject, instrs []bytecode.Instruction) ([]Extern, error) {
	var out []Extern

	for i := 0; i < len(instrs); i++ {
		ext, ok, err := scanOne(fn, instrs, i)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, ext)
		}
	}

	return out, nil
}

// scanOne attempts to match the @extern footprint anchored at instrs[i]:
//
//	LOAD_NAME                0 (extern)
//	LOAD_CONST               0 ('p1')
//	LOAD_NAME                1 (int)
//	...
//	LOAD_CONST               k ('return')
//	LOAD_CONST               k+1 (None)     -- or LOAD_NAME of a type name
//	BUILD_TUPLE              n
//	LOAD_CONST                 (<code object>)
//	MAKE_FUNCTION
//	SET_FUNCTION_ATTRIBUTE    4 (annotations)
//	CALL                      0
//	STORE_NAME                  (symbol)
//
// Once the anchor matches, any other shape is reported as EXT001.
func scanOne(fn *bytecode.CodeObject, instrs []bytecode.Instruction, i int) (Extern, bool, error) {
	if instrs[i].Op != "LOAD_NAME" || fn.Names[*instrs[i].Arg] != "extern" {
		return Extern{}, false, nil
	}

	unrecognized := func() (Extern, bool, error) {
		return Extern{}, false, diag.Unrecognized("EXT001", fmt.Sprintf(
			"@extern at instruction %d doesn't match the recognized decorated-function shape", i,
		), fn, instrs)
	}

	start := i
	annotations := map[string]InteropType{}
	var order []string

	j := i + 1
	for j+1 < len(instrs) && instrs[j].Op == "LOAD_CONST" &&
		(instrs[j+1].Op == "LOAD_NAME" || instrs[j+1].Op == "LOAD_CONST") {

		pname, ok := fn.Consts[*instrs[j].Arg].(string)
		if !ok {
			return unrecognized()
		}

		var typeName string
		isNone := instrs[j+1].Op == "LOAD_CONST"
		if isNone {
			if fn.Consts[*instrs[j+1].Arg] != nil {
				return unrecognized()
			}
		} else {
			typeName = fn.Names[*instrs[j+1].Arg]
		}

		annotations[pname] = interopTypeOf(typeName, isNone)
		order = append(order, pname)
		j += 2
	}

	if j+5 >= len(instrs) {
		return unrecognized()
	}

	if instrs[j+0].Op != "BUILD_TUPLE" ||
		instrs[j+1].Op != "LOAD_CONST" ||
		instrs[j+2].Op != "MAKE_FUNCTION" ||
		instrs[j+3].Op != "SET_FUNCTION_ATTRIBUTE" ||
		instrs[j+4].Op != "CALL" ||
		instrs[j+5].Op != "STORE_NAME" {
		return unrecognized()
	}

	end := j + 5
	symbol := fn.Names[*instrs[end].Arg]

	returnType := None
	var params []Param
	for _, name := range order {
		if name == "return" {
			returnType = annotations[name]
			continue
		}
		params = append(params, Param{Name: name, Type: annotations[name]})
	}

	if returnType == Obj {
		return Extern{}, false, diag.Unsupported("OBJ as an extern return type")
	}

	return Extern{
		Start: start,
		End:   end,
		Spec: Spec{
			Symbol:     symbol,
			Params:     params,
			ReturnType: returnType,
		},
	}, true, nil
}

// MarshallingStub generates the C declaration and PY_DEFINE wrapper for
// an @extern function: an `extern <ret> <sym>(...)` declaration plus a
// pyobj_t-taking wrapper that asserts argument count, downcasts each
// argument to its interop type, invokes the real symbol, and wraps the
// return value in a typed pyobj_t.
func MarshallingStub(spec Spec) []string {
	declParams := make([]string, len(spec.Params))
	callParams := make([]string, len(spec.Params))
	for i, p := range spec.Params {
		declParams[i] = fmt.Sprintf("%s %s", p.Type.cType(), p.Name)
		callParams[i] = "arg_" + p.Name
	}

	var body []string
	body = append(body, fmt.Sprintf("ASSERT(argc == %d);", len(spec.Params)))
	body = append(body, "ENSURE_NOT_NULL(argv);")

	for i, p := range spec.Params {
		body = append(body, fmt.Sprintf("%s arg_%s = argv[%d];", p.Type.cType(), p.Name, i))
	}

	body = append(body, fmt.Sprintf("%s ret = %s(%s);", spec.ReturnType.cType(), spec.Symbol, strings.Join(callParams, ", ")))

	switch spec.ReturnType {
	case Int:
		body = append(body, "return MARSHALLED_INT(ret);")
	case String:
		body = append(body, "return MARSHALLED_STR(ret);")
	case Bool:
		body = append(body, "return MARSHALLED_BOOL(ret);")
	case Float:
		body = append(body, "return MARSHALLED_FLOAT(ret);")
	case None:
		body = append(body, "return WITH_RESULT(&py_none);")
	}

	lines := []string{
		fmt.Sprintf("extern %s %s(%s);", spec.ReturnType.cType(), spec.Symbol, strings.Join(declParams, ", ")),
		"",
		fmt.Sprintf("PY_DEFINE(%s) {", spec.CName()),
	}
	for _, l := range body {
		lines = append(lines, "    "+l)
	}
	lines = append(lines, "}")

	return lines
}
