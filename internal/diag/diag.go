// Package diag implements pyton's structured, fail-fast diagnostics
// (spec.md §7): one Report per error kind, each carrying enough context
// (offsets, disassembly, the importer and target of a failed import) to explain itself without the
// caller re-deriving anything. Modeled on the teacher's error-reporting
// shape (a schema-tagged Report with a stable code and a phase), adapted
// to the taxonomy spec.md actually defines.
package diag

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ascpixi/pyton/internal/bytecode"
)

// Schema is the stable schema tag stamped on every JSON-rendered Report.
const Schema = "pyton.error/v1"

// Report is pyton's canonical structured error. Every diagnostic
// constructor in this package returns one, wrapped so it satisfies the
// error interface and survives errors.As().
type Report struct {
	Schema  string         `json:"schema"`
	Code    string         `json:"code"`
	Phase   string         `json:"phase"`
	Message string         `json:"message"`
	Disasm  string         `json:"disassembly,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func (r *Report) Error() string {
	return fmt.Sprintf("error: %s: %s", r.Code, r.Message)
}

// ToJSON renders the report as indented JSON, for --json CLI output.
func (r *Report) ToJSON() (string, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	return string(b), err
}

func disassemble(fn *bytecode.CodeObject, instrs []bytecode.Instruction) string {
	if fn == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "disassembly of %s (line %d):\n", fn.QualName, fn.FirstLine)
	for _, instr := range instrs {
		b.WriteString("  ")
		b.WriteString(instr.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Unrecognized reports an import or extern anchor whose surrounding shape
// doesn't match any recognized bytecode pattern (spec.md §7,
// UnrecognizedBytecode).
func Unrecognized(code, message string, fn *bytecode.CodeObject, instrs []bytecode.Instruction) *Report {
	return &Report{
		Schema:  Schema,
		Code:    code,
		Phase:   "scan",
		Message: message,
		Disasm:  disassemble(fn, instrs),
	}
}

// UnknownOpcode reports an opcode mnemonic the lowerer has no case for.
func UnknownOpcode(name string, fn *bytecode.CodeObject, instrs []bytecode.Instruction) *Report {
	return &Report{
		Schema:  Schema,
		Code:    "OPC001",
		Phase:   "lower",
		Message: fmt.Sprintf("unknown opcode %q", name),
		Disasm:  disassemble(fn, instrs),
	}
}

// UnknownConstantType reports a constant in a code object's constants
// table outside the supported key space (bool, None, str, int, float,
// tuple, code).
func UnknownConstantType(typeName string, value any, fn *bytecode.CodeObject) *Report {
	return &Report{
		Schema:  Schema,
		Code:    "CNS001",
		Phase:   "intern",
		Message: fmt.Sprintf("unknown constant type %q (value: %v)", typeName, value),
		Data:    map[string]any{"qualname": fn.QualName},
	}
}

// Unsupported reports use of an explicitly unsupported language feature
// (relative/full imports, default arguments, closures, RAISE_VARARGS with
// argc >= 2, OBJ as an extern return type).
func Unsupported(feature string) *Report {
	return &Report{
		Schema:  Schema,
		Code:    "UNS001",
		Phase:   "scan",
		Message: fmt.Sprintf("%s are not supported", feature),
	}
}

// ImportNotFound reports a resolver failure to locate a sibling module.
func ImportNotFound(importerPath, name, attemptedPath string) *Report {
	return &Report{
		Schema:  Schema,
		Code:    "IMP010",
		Phase:   "resolve",
		Message: fmt.Sprintf("import %q not found from %q", name, importerPath),
		Data: map[string]any{
			"from":   importerPath,
			"target": name,
			"path":   attemptedPath,
		},
	}
}

// AssertionFailure reports a violated invariant about the input bytecode
// shape — e.g. an anchor instruction not preceded by the operand loads
// the scanner expects.
func AssertionFailure(code, message string, fn *bytecode.CodeObject) *Report {
	data := map[string]any{}
	if fn != nil {
		data["qualname"] = fn.QualName
	}
	return &Report{
		Schema:  Schema,
		Code:    code,
		Phase:   "assert",
		Message: message,
		Data:    data,
	}
}
