// Package imports implements the static import scanner of spec.md §4.1:
// it recognizes the bytecode footprint IMPORT_NAME leaves around full
// (`import X`) and selective (`from X import Y`) statements, without ever
// building an AST.
package imports

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ascpixi/pyton/internal/bytecode"
	"github.com/ascpixi/pyton/internal/diag"
)

// Target is one `(origin, alias)` pair of a selective import, e.g. for
// `from m import abc as aaa`, origin is "abc" and alias is "aaa".
type Target struct {
	Origin string
	Alias  string
}

// Import is one recognized import statement. Exactly one of Alias/Targets
// is meaningful, discriminated by Kind.
type Import struct {
	Kind    Kind
	Name    string // the module name being imported, e.g. "something"
	Alias   string // Full imports only
	Targets []Target // Selective imports only
	Start   int      // instruction index of the anchor's LOAD_CONST (level)
	End     int      // instruction index of the import's trailing instruction
}

type Kind int

const (
	Full Kind = iota
	Selective
)

// Scan finds every recognized import sequence in fn's instruction stream.
// Imports may only appear among fn's top-level instructions — this is a
// pyton-specific restriction (no conditional imports), since the whole
// program is translated ahead of time.
func Scan(fn *bytecode.CodeObject, instrs []bytecode.Instruction) ([]Import, error) {
	var out []Import

	for i, instr := range instrs {
		if instr.Op != "IMPORT_NAME" {
			continue
		}

		if i < 2 || instrs[i-2].Op != "LOAD_CONST" || instrs[i-1].Op != "LOAD_CONST" {
			return nil, diag.Unrecognized("IMP001", fmt.Sprintf(
				"IMPORT_NAME at instruction %d is not preceded by two LOAD_CONST instructions (level, fromlist)", i,
			), fn, instrs)
		}

		levelIdx := *instrs[i-2].Arg
		level := fn.Consts[levelIdx]
		levelInt, ok := level.(int64)
		if !ok {
			return nil, diag.AssertionFailure("IMP002", "import level constant is not an int", fn)
		}
		if levelInt != 0 {
			return nil, diag.Unsupported("relative imports")
		}

		fromListIdx := *instrs[i-1].Arg
		fromList := fn.Consts[fromListIdx]

		importNameIdx := *instr.Arg
		importName := fn.Names[importNameIdx]

		if fromList == nil {
			imp, ok := scanFullImport(fn, instrs, i, importName)
			if ok {
				out = append(out, imp)
				continue
			}
		} else if _, ok := fromList.(bytecode.Tuple); ok {
			imp, ok := scanSelectiveImport(fn, instrs, i, importName)
			if ok {
				out = append(out, imp)
				continue
			}
		} else {
			return nil, diag.AssertionFailure("IMP003", "fromlist constant is neither None nor a tuple", fn)
		}

		return nil, diag.Unrecognized("IMP004", fmt.Sprintf(
			"IMPORT_NAME of %q at instruction %d doesn't match a recognized full- or selective-import shape", importName, i,
		), fn, instrs)
	}

	return out, nil
}

// scanFullImport matches:
//
//	-2  LOAD_CONST 0        (level)
//	-1  LOAD_CONST None     (fromlist)
//	 *  IMPORT_NAME something
//	+1  STORE_NAME <alias>
func scanFullImport(fn *bytecode.CodeObject, instrs []bytecode.Instruction, i int, name string) (Import, bool) {
	if i+1 >= len(instrs) || instrs[i+1].Op != "STORE_NAME" {
		return Import{}, false
	}

	alias := fn.Names[*instrs[i+1].Arg]
	return Import{
		Kind:  Full,
		Name:  name,
		Alias: alias,
		Start: i - 2,
		End:   i + 1,
	}, true
}

// scanSelectiveImport matches:
//
//	-2  LOAD_CONST 0             (level)
//	-1  LOAD_CONST (...)         (fromlist)
//	 *  IMPORT_NAME something
//	+1  IMPORT_FROM abc
//	+2  STORE_NAME abc
//	...repeated...
//	+n  POP_TOP
func scanSelectiveImport(fn *bytecode.CodeObject, instrs []bytecode.Instruction, i int, name string) (Import, bool) {
	var targets []Target
	j := i

	for {
		if j+1 >= len(instrs) {
			return Import{}, false
		}

		if instrs[j+1].Op == "POP_TOP" {
			return Import{
				Kind:    Selective,
				Name:    name,
				Targets: targets,
				Start:   i - 2,
				End:     j + 1,
			}, true
		}

		if j+2 >= len(instrs) || instrs[j+1].Op != "IMPORT_FROM" || instrs[j+2].Op != "STORE_NAME" {
			return Import{}, false
		}

		origin := fn.Names[*instrs[j+1].Arg]
		alias := fn.Names[*instrs[j+2].Arg]
		targets = append(targets, Target{Origin: origin, Alias: alias})
		j += 2
	}
}

// Resolve maps an import name (dotted components become path separators)
// to a sibling .pyc file next to importerPath, failing with ImportNotFound
// if that file doesn't exist.
func Resolve(importerPath, name string) (string, error) {
	namePath := strings.ReplaceAll(name, ".", string(filepath.Separator))
	path := filepath.Join(filepath.Dir(importerPath), namePath+".pyc")

	if _, err := os.Stat(path); err != nil {
		return "", diag.ImportNotFound(importerPath, name, path)
	}

	return path, nil
}
