package codegen

import (
	"fmt"
	"strings"

	"github.com/ascpixi/pyton/internal/externs"
)

// Transpile merges every translated module into one compilable C
// translation unit. entrypoint is the mangled name of the function to
// register as the kernel's entry point (usually __main__'s <module>
// function); pass "" to omit DEFINE_ENTRYPOINT for library builds.
func (tu *TranslationUnit) Transpile(entrypoint string) string {
	var lines []string

	lines = append(lines,
		"// <auto-generated>",
		"// This code was transpiled from Python bytecode by pyton.",
		"// </auto-generated>",
		"",
		"#include <pyton_runtime.h>",
		"",
		`#pragma GCC diagnostic ignored "-Wunused-label"`,
		"",
	)

	lines = append(lines, "// Transpiled function declarations")
	for _, modName := range tu.moduleOrder {
		mod := tu.Modules[modName]
		for _, name := range mod.transpileOrder {
			lines = append(lines, fmt.Sprintf("PY_DEFINE(%s);", name))
		}
	}
	lines = append(lines, "")

	externSyms := tu.allExterns()
	if len(externSyms) > 0 {
		lines = append(lines, "// Extern (FFI) declarations")
		for _, spec := range externSyms {
			lines = append(lines, externs.MarshallingStub(spec)...)
			lines = append(lines, "",
				fmt.Sprintf("static pyobj_t py_extern_%s = { .type = &py_type_function, .as_function = &%s };",
					sanitizeIdentifier(spec.Symbol), spec.CName()),
				"",
			)
		}
	}

	lines = append(lines, "// Module-specific definitions/declarations")
	for _, modName := range tu.moduleOrder {
		mod := tu.Modules[modName]

		lines = append(lines, fmt.Sprintf("// State for module %s", mod.Name))
		lines = append(lines, fmt.Sprintf("bool MODULE_INIT_STATE(%s) = false;", mod.Name))
		lines = append(lines, "")

		lines = append(lines, fmt.Sprintf("// Known global names for %s", mod.Name))
		for _, name := range mod.KnownNames {
			if mod.Name == "__main__" {
				lines = append(lines, "#ifndef "+wellknownGlobalMacro(name))
			}

			lines = append(lines, fmt.Sprintf("pyobj_t* %s = NULL; // global '%s'", tu.mangleGlobal(name, mod.Name), name))

			if mod.Name == "__main__" {
				lines = append(lines, "#endif", "")
			}
		}
		lines = append(lines, "")
	}

	lines = append(lines, "// Known constants")
	lines = append(lines, tu.Pool.Definitions...)
	lines = append(lines, "")

	if entrypoint != "" {
		lines = append(lines, fmt.Sprintf("DEFINE_ENTRYPOINT(%s);", entrypoint), "")
	}

	lines = append(lines, "// Transpiled function implementations")
	for _, modName := range tu.moduleOrder {
		mod := tu.Modules[modName]

		for _, name := range mod.transpileOrder {
			fn := mod.Transpiled[name]

			lines = append(lines, "PY_DEFINE("+name+") {")

			if mod.Name != "__main__" && fn.Origin.IsModule() {
				for _, known := range mod.KnownNames {
					lines = append(lines,
						"#ifdef "+wellknownGlobalMacro(known),
						fmt.Sprintf("    %s = %s;", tu.mangleGlobal(known, mod.Name), tu.mangleGlobal(known, "__main__")),
						"#endif",
					)
				}
			}

			lines = append(lines, indent(fn.Body, "    "))
			lines = append(lines, "}", "")
		}
	}

	return strings.Join(lines, "\n")
}

func (tu *TranslationUnit) allExterns() []externs.Spec {
	var out []externs.Spec
	seen := make(map[string]struct{})
	for _, modName := range tu.moduleOrder {
		for _, spec := range tu.Modules[modName].Externs {
			if _, ok := seen[spec.Symbol]; ok {
				continue
			}
			seen[spec.Symbol] = struct{}{}
			out = append(out, spec)
		}
	}
	return out
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l == "" {
			continue
		}
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
