// Package codegen implements the translation-unit assembly of spec.md
// §4.6: it mangles names, recursively translates code objects (including
// sibling modules reached through imports) into C functions, and stitches
// every piece internal/lower, internal/constpool, internal/imports, and
// internal/externs produce into one compilable translation unit.
package codegen

import (
	"fmt"
	"regexp"

	"github.com/ascpixi/pyton/internal/bytecode"
	"github.com/ascpixi/pyton/internal/constpool"
	"github.com/ascpixi/pyton/internal/diag"
	"github.com/ascpixi/pyton/internal/externs"
	"github.com/ascpixi/pyton/internal/imports"
	"github.com/ascpixi/pyton/internal/lower"
	"github.com/ascpixi/pyton/internal/simplify"
)

var identifierRun = regexp.MustCompile(`[^_A-Za-z0-9]+`)

// sanitizeIdentifier replaces every run of non-identifier characters with
// a double underscore, matching pyton's original transpiler so mangled
// names stay stable across ports.
func sanitizeIdentifier(s string) string {
	return identifierRun.ReplaceAllString(s, "__")
}

func wellknownGlobalMacro(name string) string {
	return "PY_GLOBAL_" + sanitizeIdentifier(name) + "_WELLKNOWN"
}

// Loader reads a compiled code object from a .pyc file on disk, the only
// way pyton ingests Python source — see SPEC_FULL.md §0.
type Loader interface {
	Load(path string) (*bytecode.CodeObject, error)
}

// TranspiledFunction is one finished C function body alongside the code
// object it was lowered from.
type TranspiledFunction struct {
	Body   string
	Origin *bytecode.CodeObject
}

// Module holds everything specific to one translated module: its known
// global names and its transpiled functions, in first-discovery order so
// output is deterministic.
type Module struct {
	Name          string
	KnownNames    []string
	knownNamesSet map[string]struct{}

	Transpiled     map[string]*TranspiledFunction
	transpileOrder []string

	// Externs are the @extern functions discovered while translating this
	// module's top-level code.
	Externs []externs.Spec
}

func newModule(name string) *Module {
	return &Module{
		Name:          name,
		knownNamesSet: make(map[string]struct{}),
		Transpiled:    make(map[string]*TranspiledFunction),
	}
}

func (m *Module) addKnownName(name string) {
	if _, ok := m.knownNamesSet[name]; ok {
		return
	}
	m.knownNamesSet[name] = struct{}{}
	m.KnownNames = append(m.KnownNames, name)
}

func (m *Module) setTranspiled(mangled string, fn *TranspiledFunction) {
	if _, ok := m.Transpiled[mangled]; !ok {
		m.transpileOrder = append(m.transpileOrder, mangled)
	}
	m.Transpiled[mangled] = fn
}

// TranslationUnit is a single compiled C file in progress: the constant
// pool and every module reached from the entrypoint by import.
type TranslationUnit struct {
	Pool *constpool.Pool

	Modules     map[string]*Module
	moduleOrder []string

	Loader Loader
}

// New creates an empty translation unit. loader resolves import targets
// to their compiled code objects.
func New(loader Loader) *TranslationUnit {
	return &TranslationUnit{
		Pool:    constpool.New(),
		Modules: make(map[string]*Module),
		Loader:  loader,
	}
}

func (tu *TranslationUnit) module(name string) *Module {
	if m, ok := tu.Modules[name]; ok {
		return m
	}
	m := newModule(name)
	tu.Modules[name] = m
	tu.moduleOrder = append(tu.moduleOrder, name)
	return m
}

// mangle returns the C symbol name for a code object transpiled as part
// of module.
func (tu *TranslationUnit) mangle(fn *bytecode.CodeObject, module string) string {
	return fmt.Sprintf("pyfn__%s_%s", module, sanitizeIdentifier(fn.QualName))
}

// mangleGlobal returns the C symbol for a global name in module.
// __main__ globals are canonical and carry no module prefix; every other
// module's globals are prefixed with the module name, and Transpile
// copies well-known __main__ globals into them on module entry.
func (tu *TranslationUnit) mangleGlobal(name, module string) string {
	if module == "__main__" {
		return "pyglobal__" + sanitizeIdentifier(name)
	}
	return fmt.Sprintf("pyglobal__%s_%s", module, sanitizeIdentifier(name))
}

// findTranspiled looks up a mangled function name across every module.
func (tu *TranslationUnit) findTranspiled(mangled string) bool {
	for _, m := range tu.Modules {
		if _, ok := m.Transpiled[mangled]; ok {
			return true
		}
	}
	return false
}

// Translate lowers fn into a C function body, recursively translating
// every module it imports from and every nested code constant it
// contains. Returns the mangled name of the resulting function; calling
// Translate again with the same fn/module is a no-op that returns the
// cached name.
func (tu *TranslationUnit) Translate(fn *bytecode.CodeObject, sourcePath, module string, isClassBody bool) (string, error) {
	mangled := tu.mangle(fn, module)
	if tu.findTranspiled(mangled) {
		return mangled, nil
	}

	isModule := fn.IsModule()
	if isModule {
		if isClassBody {
			return "", diag.AssertionFailure("AST001", "a module body cannot also be a class body", fn)
		}
		tu.module(module)
	}

	mod := tu.module(module)

	instrs, err := bytecode.Decode(fn.Code)
	if err != nil {
		return "", err
	}

	var body []string
	body = append(body,
		fmt.Sprintf("// Function %s of module %s, declared on line %d, class body: %s",
			fn.QualName, module, fn.FirstLine, yesNo(isClassBody)),
		fmt.Sprintf("void* stack[%d] = {0};", fn.StackSize+1),
		"int stack_current = -1;",
		"pyobj_t* caught_exception = NULL;",
		"#define PY__EXCEPTION_HANDLER_LABEL L_uncaught_exception",
	)

	if isModule {
		body = append(body, "", fmt.Sprintf("MODULE_PROLOGUE(%s);", module))
	}

	body = append(body, "", "// (constants start)")

	var ignoreRanges []lower.IgnoreRange

	importList, err := imports.Scan(fn, instrs)
	if err != nil {
		return "", err
	}

	for _, imp := range importList {
		ignoreRanges = append(ignoreRanges, lower.IgnoreRange{Start: imp.Start, End: imp.End})

		if imp.Kind == imports.Full {
			return "", diag.Unsupported("full imports (e.g. import module) — use a selective import instead")
		}

		path, err := imports.Resolve(sourcePath, imp.Name)
		if err != nil {
			return "", err
		}

		imported, err := tu.Loader.Load(path)
		if err != nil {
			return "", err
		}

		moduleBody, err := tu.Translate(imported, path, imp.Name, false)
		if err != nil {
			return "", err
		}

		names := ""
		for i, t := range imp.Targets {
			if i > 0 {
				names += ", "
			}
			names += fmt.Sprintf("(%s as %s)", t.Origin, t.Alias)
		}
		body = append(body,
			fmt.Sprintf("// from %s import %s", imp.Name, names),
			fmt.Sprintf("%s(NULL, 0, NULL, 0, NULL);", moduleBody),
		)

		for _, t := range imp.Targets {
			body = append(body, fmt.Sprintf("%s = %s;",
				tu.mangleGlobal(t.Alias, module), tu.mangleGlobal(t.Origin, imp.Name)))
		}
	}

	externList, err := externs.Scan(fn, instrs)
	if err != nil {
		return "", err
	}
	for _, ex := range externList {
		ignoreRanges = append(ignoreRanges, lower.IgnoreRange{Start: ex.Start, End: ex.End})
		mod.Externs = append(mod.Externs, ex.Spec)

		body = append(body, fmt.Sprintf("// @extern %s", ex.Spec.Symbol),
			fmt.Sprintf("%s = &py_extern_%s;", tu.mangleGlobal(ex.Spec.Symbol, module), sanitizeIdentifier(ex.Spec.Symbol)))
	}

	for _, r := range simplify.Simplify(fn, instrs) {
		ignoreRanges = append(ignoreRanges, lower.IgnoreRange{Start: r.Start, End: r.End})
	}

	for i, c := range fn.Consts {
		sym, err := tu.Pool.Intern(c, instrs, fn, sourcePath, module, tu)
		if err != nil {
			return "", err
		}
		body = append(body, fmt.Sprintf("#define const_%d (%s)", i, sym))
	}

	body = append(body, "// (constants end)", "")

	if !isModule && !isClassBody {
		body = append(body, "int argc_all = argc + ((self != NULL) ? 1 : 0);")

		for _, name := range fn.VarNames {
			body = append(body, fmt.Sprintf("pyobj_t* loc_%s = NULL;", name))
		}

		if !fn.VarArgs {
			body = append(body, fmt.Sprintf("PY_POS_ARG_MAX(%d);", fn.ArgCount))
		}
		if fn.ArgCount != 0 {
			body = append(body, fmt.Sprintf("PY_POS_ARG_MIN(%d);", fn.ArgCount))
		}

		posArgs := "pyobj_t** pos_args[] = { "
		for i := 0; i < fn.ArgCount; i++ {
			if i > 0 {
				posArgs += ", "
			}
			posArgs += "&loc_" + fn.VarNames[i]
		}
		posArgs += " };"
		body = append(body, posArgs, fmt.Sprintf("PY_POS_ARGS_TO_VARS(%d);", fn.ArgCount))
	}

	if isClassBody {
		body = append(body, "ENSURE_NOT_NULL(self);")
	}

	for _, name := range fn.Names {
		mod.addKnownName(name)
	}

	lowered, err := lower.Lower(lower.Input{
		Fn:           fn,
		Instrs:       instrs,
		Module:       module,
		IsModule:     isModule,
		IsClassBody:  isClassBody,
		IgnoreRanges: ignoreRanges,
		MangleGlobal: tu.mangleGlobal,
	})
	if err != nil {
		return "", err
	}
	body = append(body, lowered...)

	body = append(body, "#undef PY__EXCEPTION_HANDLER_LABEL")
	for i := range fn.Consts {
		body = append(body, fmt.Sprintf("#undef const_%d", i))
	}

	mod.setTranspiled(mangled, &TranspiledFunction{
		Body:   joinLines(body),
		Origin: fn,
	})

	return mangled, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
