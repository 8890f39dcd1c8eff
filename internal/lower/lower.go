// Package lower implements the opcode lowerer of spec.md §4.5: given one
// code object's instruction stream (with import and simplifier ranges
// already marked for elision), it emits the C statements of that code
// object's function body, opcode by opcode, tracking a stack cursor and
// the active exception-handler label as it goes.
package lower

import (
	"fmt"
	"strings"

	"github.com/ascpixi/pyton/internal/bytecode"
	"github.com/ascpixi/pyton/internal/diag"
)

// stackPush/stackPop mirror the C macros the generated body indexes
// through: stack_current always points at the slot that would be popped
// next, so pushing must pre-increment and popping must post-decrement.
const (
	stackPush = "stack[++stack_current]"
	stackPop  = "stack[stack_current--]"
)

// IgnoreRange is an instruction-index span lower must skip without
// emitting any statements for it — populated by the caller from import
// scan results and internal/simplify.
type IgnoreRange struct {
	Start int
	End   int
}

func (r IgnoreRange) contains(i int) bool { return i >= r.Start && i <= r.End }

// Input is everything Lower needs to emit one code object's function
// body, aside from constant definitions (already owned by
// internal/constpool, referenced here only by index as const_N).
type Input struct {
	Fn           *bytecode.CodeObject
	Instrs       []bytecode.Instruction
	Module       string
	IsModule     bool
	IsClassBody  bool
	IgnoreRanges []IgnoreRange

	// MangleGlobal returns the mangled C symbol for a global name in the
	// given module (internal/codegen.TranslationUnit.mangleGlobal).
	MangleGlobal func(name, module string) string
}

// Lower emits the "(function body start)" .. "(function end)" section of
// one code object's transpiled C function, including the trailing
// uncaught-exception label. The caller (internal/codegen) is responsible
// for the surrounding prologue (stack declaration, constant #defines,
// argument binding) and the #undef cleanup.
func Lower(in Input) ([]string, error) {
	labels := BuildLabels(in.Instrs, in.Fn.ExceptionTable)

	var body []string
	body = append(body, "// (function body start)")

	var prevHandlerLabel string
	hasHandler := false

	for idx, instr := range in.Instrs {
		body = append(body, fmt.Sprintf("// %d: %s", instr.Offset, strings.TrimSpace(instr.String())))

		if label, ok := labels.At(instr.Offset); ok {
			body = append(body, label+":")
		}

		entry := bytecode.FindHandler(in.Fn.ExceptionTable, instr.Offset)

		if entry != nil {
			handlerLabel, _ := labels.At(entry.Target)
			if !hasHandler || prevHandlerLabel != handlerLabel {
				body = append(body,
					fmt.Sprintf("// Exception region: %d to %d, target %d, depth %d, lasti: %s",
						entry.Start, entry.End, entry.Target, entry.Depth, yesNo(entry.Lasti)),
					"#undef PY__EXCEPTION_HANDLER_LABEL",
					"#define PY__EXCEPTION_HANDLER_LABEL "+handlerLabel,
				)
				prevHandlerLabel = handlerLabel
				hasHandler = true
			}
		} else if hasHandler {
			body = append(body,
				"// No exception handler for this region",
				"#undef PY__EXCEPTION_HANDLER_LABEL",
				"#define PY__EXCEPTION_HANDLER_LABEL L_uncaught_exception",
			)
			hasHandler = false
		}

		excDepth, excLasti := 0, -1
		if entry != nil {
			excDepth = entry.Depth
			excLasti = instr.Offset
		}

		skip := false
		for _, r := range in.IgnoreRanges {
			if r.contains(idx) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}

		lines, err := lowerOne(in, instr, labels, excDepth, excLasti)
		if err != nil {
			return nil, err
		}

		body = append(body, lines...)
		body = append(body, "")
	}

	body = append(body, "// (function end)", "")
	body = append(body, "L_uncaught_exception:", "return WITH_EXCEPTION(caught_exception);", "")

	return body, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// lowerOne emits the statements for a single, non-elided instruction.
func lowerOne(in Input, instr bytecode.Instruction, labels Labels, excDepth, excLasti int) ([]string, error) {
	fn := in.Fn

	switch instr.Op {
	case "RESUME", "NOP":
		return nil, nil

	case "PUSH_NULL":
		return []string{stackPush + " = NULL;"}, nil

	case "LOAD_NAME":
		name := fn.Names[*instr.Arg]
		switch {
		case in.IsModule:
			return []string{fmt.Sprintf("%s = NOT_NULL(%s);", stackPush, in.MangleGlobal(name, in.Module))}, nil
		case in.IsClassBody:
			return []string{fmt.Sprintf("PY_OPCODE_LOAD_NAME_CLASS(%s);", name)}, nil
		default:
			return []string{fmt.Sprintf("%s = loc_%s != NULL ? loc_%s : NOT_NULL(%s);",
				stackPush, name, name, in.MangleGlobal(name, in.Module))}, nil
		}

	case "LOAD_CONST":
		return []string{fmt.Sprintf("%s = &const_%d;", stackPush, *instr.Arg)}, nil

	case "LOAD_GLOBAL":
		name := fn.Names[*instr.Arg>>1]
		lines := []string{fmt.Sprintf("%s = %s;", stackPush, in.MangleGlobal(name, in.Module))}
		if *instr.Arg&1 == 1 {
			lines = append(lines, "stack[++stack_current] = NULL;")
		}
		return lines, nil

	case "LOAD_FAST":
		name := fn.VarNames[*instr.Arg]
		if in.IsClassBody {
			return []string{fmt.Sprintf(`%s = NOT_NULL(py_get_attribute(self, "%s"));`, stackPush, name)}, nil
		}
		return []string{fmt.Sprintf("%s = loc_%s;", stackPush, name)}, nil

	case "LOAD_FAST_LOAD_FAST":
		hi := fn.VarNames[*instr.Arg>>4]
		lo := fn.VarNames[*instr.Arg&15]
		if in.IsClassBody {
			return []string{
				fmt.Sprintf(`%s = NOT_NULL(py_get_attribute(self, "%s"));`, stackPush, hi),
				fmt.Sprintf(`%s = NOT_NULL(py_get_attribute(self, "%s"));`, stackPush, lo),
			}, nil
		}
		return []string{
			fmt.Sprintf("%s = loc_%s;", stackPush, hi),
			fmt.Sprintf("%s = loc_%s;", stackPush, lo),
		}, nil

	case "CALL":
		return []string{fmt.Sprintf("PY_OPCODE_CALL(%d, %d, %d);", argOrZero(instr), excDepth, excLasti)}, nil

	case "RETURN_VALUE":
		return []string{"return WITH_RESULT(stack[stack_current]);"}, nil

	case "POP_TOP", "POP_EXCEPT", "END_FOR":
		return []string{"stack_current--;"}, nil

	case "RETURN_CONST":
		return []string{fmt.Sprintf("return WITH_RESULT(&const_%d);", *instr.Arg)}, nil

	case "STORE_NAME":
		name := fn.Names[*instr.Arg]
		switch {
		case in.IsModule:
			return []string{fmt.Sprintf("%s = %s;", in.MangleGlobal(name, in.Module), stackPop)}, nil
		case in.IsClassBody:
			return []string{fmt.Sprintf(`py_set_attribute(self, STR("%s"), %s);`, name, stackPop)}, nil
		default:
			return []string{fmt.Sprintf("loc_%s = %s;", name, stackPop)}, nil
		}

	case "STORE_FAST":
		name := fn.VarNames[*instr.Arg]
		if in.IsClassBody {
			return []string{fmt.Sprintf(`py_set_attribute(self, STR("%s"), %s);`, name, stackPop)}, nil
		}
		return []string{fmt.Sprintf("loc_%s = (pyobj_t*)(%s);", name, stackPop)}, nil

	case "STORE_ATTR":
		name := fn.Names[*instr.Arg]
		return []string{fmt.Sprintf(`PY_OPCODE_STORE_ATTR("%s");`, name)}, nil

	case "LOAD_ATTR":
		name := fn.Names[*instr.Arg>>1]
		if *instr.Arg&1 == 0 {
			return []string{fmt.Sprintf(`PY_OPCODE_LOAD_ATTR("%s");`, name)}, nil
		}
		return []string{fmt.Sprintf(`PY_OPCODE_LOAD_ATTR_CALLABLE("%s");`, name)}, nil

	case "COMPARE_OP":
		cmp := bytecode.CompareOp(*instr.Arg >> 5)
		coerce := (*instr.Arg & 16) != 0
		return []string{fmt.Sprintf("PY_OPCODE_COMPARISON(%s, %s, %d, %d);", cmp.Macro(), cBool(coerce), excDepth, excLasti)}, nil

	case "POP_JUMP_IF_FALSE":
		target, _ := labels.At(*instr.JumpTarget)
		return []string{fmt.Sprintf("PY_OPCODE_POP_JUMP_IF_FALSE(%s);", target)}, nil

	case "POP_JUMP_IF_TRUE":
		target, _ := labels.At(*instr.JumpTarget)
		return []string{fmt.Sprintf("PY_OPCODE_POP_JUMP_IF_TRUE(%s);", target)}, nil

	case "BINARY_OP":
		macro, ok := bytecode.BinaryOpMacro[bytecode.BinaryOpKind(*instr.Arg)]
		if !ok {
			return nil, diag.UnknownOpcode(fmt.Sprintf("BINARY_OP(%d)", *instr.Arg), fn, in.Instrs)
		}
		return []string{fmt.Sprintf("PY_OPCODE_OPERATION(%s, %d, %d);", macro, excDepth, excLasti)}, nil

	case "JUMP_BACKWARD", "JUMP_BACKWARD_NO_INTERRUPT":
		target, _ := labels.At(*instr.JumpTarget)
		return []string{fmt.Sprintf("goto %s;", target)}, nil

	case "RAISE_VARARGS":
		switch argOrZero(instr) {
		case 0:
			return []string{fmt.Sprintf("RAISE_CATCHABLE(caught_exception, %d, %d);", excDepth, excLasti)}, nil
		case 1:
			return []string{fmt.Sprintf("RAISE_CATCHABLE(%s, %d, %d);", stackPop, excDepth, excLasti)}, nil
		default:
			return nil, diag.Unsupported(fmt.Sprintf("RAISE_VARARGS with argc %d", *instr.Arg))
		}

	case "PUSH_EXC_INFO":
		return []string{"PY_OPCODE_PUSH_EXC_INFO();"}, nil

	case "MAKE_FUNCTION":
		return []string{"// (already a function)"}, nil

	case "SET_FUNCTION_ATTRIBUTE":
		switch *instr.Arg {
		case 0x01, 0x02:
			return nil, diag.Unsupported("default values for arguments")
		case 0x04:
			return []string{"PY_OPCODE_SET_FUNC_ATTR_ANNOTATIONS();"}, nil
		case 0x08:
			return nil, diag.Unsupported("closures")
		default:
			return nil, diag.UnknownOpcode(fmt.Sprintf("SET_FUNCTION_ATTRIBUTE(0x%x)", *instr.Arg), fn, in.Instrs)
		}

	case "LOAD_BUILD_CLASS":
		return []string{fmt.Sprintf("%s = %s;", stackPush, in.MangleGlobal("__build_class__", "__main__"))}, nil

	case "COPY":
		return []string{fmt.Sprintf("PY_OPCODE_COPY(%d);", argOrZero(instr))}, nil

	case "SWAP":
		return []string{fmt.Sprintf("PY_OPCODE_SWAP(%d);", argOrZero(instr))}, nil

	case "RERAISE":
		return []string{fmt.Sprintf("RAISE_CATCHABLE(%s, %d, %d);", stackPop, excDepth, excLasti)}, nil

	case "CHECK_EXC_MATCH":
		return []string{"PY_OPCODE_CHECK_EXC_MATCH();"}, nil

	case "GET_ITER":
		return []string{fmt.Sprintf("PY_OPCODE_GET_ITER(%d, %d);", excDepth, excLasti)}, nil

	case "FOR_ITER":
		target, _ := labels.At(*instr.JumpTarget)
		return []string{fmt.Sprintf("PY_OPCODE_FOR_ITER(%s, %d, %d);", target, excDepth, excLasti)}, nil

	default:
		return nil, diag.UnknownOpcode(instr.Op, fn, in.Instrs)
	}
}

func argOrZero(instr bytecode.Instruction) int {
	if instr.Arg == nil {
		return 0
	}
	return *instr.Arg
}

func cBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
