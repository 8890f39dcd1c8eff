// Package constpool implements the constant interner of spec.md §4.4: it
// memoizes constants to stable global C symbols, recursively translating
// nested code constants into functions and classifying them as class
// bodies or regular functions.
package constpool

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ascpixi/pyton/internal/bytecode"
	"github.com/ascpixi/pyton/internal/diag"
)

// Translator recursively translates a nested code constant into a C
// function, returning its mangled name. Implemented by
// internal/codegen.TranslationUnit; kept as an interface here so
// constpool doesn't import codegen (which imports constpool).
type Translator interface {
	Translate(fn *bytecode.CodeObject, sourcePath, module string, isClassBody bool) (string, error)
}

// Pool is the process-wide constant table (spec.md §3's
// known_consts/next_const_id/const_definitions).
type Pool struct {
	known       map[string]string
	nextID      int
	Definitions []string
}

// New creates an empty constant pool.
func New() *Pool {
	return &Pool{known: make(map[string]string), nextID: 1}
}

// Intern gets or creates the C symbol for const, recursively interning
// tuple elements and translating code constants. sourceInstrs/sourceFn
// are the enclosing code object's instructions, needed only to classify a
// code constant as a class body (scanning for a preceding
// LOAD_BUILD_CLASS).
func (p *Pool) Intern(
	c bytecode.Const,
	sourceInstrs []bytecode.Instruction,
	sourceFn *bytecode.CodeObject,
	sourcePath string,
	sourceModule string,
	tr Translator,
) (string, error) {
	switch v := c.(type) {
	case bool:
		if v {
			return "py_true", nil
		}
		return "py_false", nil
	case nil:
		return "py_none", nil
	}

	key := keyOf(c)
	if sym, ok := p.known[key]; ok {
		return sym, nil
	}

	name := fmt.Sprintf("py_const_%d", p.nextID)
	p.nextID++
	p.known[key] = name

	switch v := c.(type) {
	case string:
		escaped := strings.ReplaceAll(v, "\r", "")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		p.Definitions = append(p.Definitions, fmt.Sprintf(
			`static pyobj_t %s = { .type = &py_type_str, .as_str = STR("%s") };`, name, escaped,
		))

	case int64:
		p.Definitions = append(p.Definitions, fmt.Sprintf(
			"static pyobj_t %s = { .type = &py_type_int, .as_int = %d };", name, v,
		))

	case float64:
		p.Definitions = append(p.Definitions, fmt.Sprintf(
			"static pyobj_t %s = { .type = &py_type_float, .as_float = %s };", name, strconv.FormatFloat(v, 'g', -1, 64),
		))

	case bytecode.Tuple:
		items := make([]string, len(v))
		for i, item := range v {
			sym, err := p.Intern(item, sourceInstrs, sourceFn, sourcePath, sourceModule, tr)
			if err != nil {
				return "", err
			}
			items[i] = sym
		}

		elemSyms := make([]string, len(items))
		for i, s := range items {
			elemSyms[i] = "&" + s
		}

		p.Definitions = append(p.Definitions, fmt.Sprintf(
			"static pyobj_t* %s_elements[] = { %s };", name, strings.Join(elemSyms, ", "),
		))
		p.Definitions = append(p.Definitions,
			"static pyobj_t "+name+" = {",
			"    .type = &py_type_tuple,",
			"    .as_list = {",
			fmt.Sprintf("        .elements = %s_elements,", name),
			fmt.Sprintf("        .length = %d,", len(v)),
			fmt.Sprintf("        .capacity = %d", len(v)),
			"    }",
			"};",
		)

	case *bytecode.CodeObject:
		isClassBody := classifiesAsClassBody(v, sourceInstrs, sourceFn)

		target, err := tr.Translate(v, sourcePath, sourceModule, isClassBody)
		if err != nil {
			return "", err
		}

		p.Definitions = append(p.Definitions, fmt.Sprintf(
			"static pyobj_t %s = { .type = &py_type_function, .as_function = &%s };", name, target,
		))

	default:
		return "", diag.UnknownConstantType(fmt.Sprintf("%T", c), c, sourceFn)
	}

	return name, nil
}

// classifiesAsClassBody reports whether a code constant is the first
// LOAD_CONST whose referenced constant equals target, scanning forward
// for a preceding LOAD_BUILD_CLASS in the enclosing code's instructions.
func classifiesAsClassBody(target *bytecode.CodeObject, instrs []bytecode.Instruction, fn *bytecode.CodeObject) bool {
	searchingForBuildClass := true

	for _, instr := range instrs {
		if searchingForBuildClass {
			if instr.Op == "LOAD_BUILD_CLASS" {
				searchingForBuildClass = false
			}
			continue
		}

		if instr.Op != "LOAD_CONST" || instr.Arg == nil {
			continue
		}

		if co, ok := fn.Consts[*instr.Arg].(*bytecode.CodeObject); ok && co == target {
			return true
		}
	}

	return false
}

// keyOf produces a deterministic string key for value equality on the
// supported constant key space. Identical values yield identical keys;
// different values never collide (tuples and code objects are namespaced
// by tag, so a tuple can never collide with a string that happens to
// render the same way).
func keyOf(c bytecode.Const) string {
	switch v := c.(type) {
	case string:
		return "s:" + strconv.Quote(v)
	case int64:
		return "i:" + strconv.FormatInt(v, 10)
	case float64:
		return "f:" + strconv.FormatFloat(v, 'b', -1, 64)
	case bytecode.Tuple:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = keyOf(item)
		}
		return "t:(" + strings.Join(parts, ",") + ")"
	case *bytecode.CodeObject:
		return fmt.Sprintf("c:%p", v)
	default:
		return fmt.Sprintf("?:%v", v)
	}
}
