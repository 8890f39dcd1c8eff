package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/ascpixi/pyton/internal/bytecode"
	"github.com/ascpixi/pyton/internal/constpool"
	"github.com/ascpixi/pyton/internal/externs"
	"github.com/ascpixi/pyton/internal/imports"
	"github.com/ascpixi/pyton/internal/marshal"
)

// previewWidth bounds how many display columns a LOAD_CONST string preview
// takes up in a disassembly dump, before constpool.Preview elides the rest.
const previewWidth = 40

// disasmCommand loads a .pyc file's code-object tree and drops into a
// small read-only inspection shell — no C is ever emitted here, it shares
// only the loader and scanners with build.
func disasmCommand(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}
	if len(data) < pycHeaderSize {
		fmt.Fprintf(os.Stderr, "%s: %s is too short to be a .pyc file\n", red("Error"), path)
		os.Exit(1)
	}

	root, err := marshal.ReadCodeObject(data[pycHeaderSize:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}

	byQualName := map[string]*bytecode.CodeObject{}
	collectCodeObjects(root, byQualName)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCompleter(func(l string) (c []string) {
		for _, cmd := range []string{"dis ", "imports", "externs", "quit"} {
			if strings.HasPrefix(cmd, l) {
				c = append(c, cmd)
			}
		}
		return
	})

	fmt.Fprintf(os.Stdout, "%s %s\n", bold("pyton disasm"), path)
	fmt.Fprintln(os.Stdout, "Commands: dis <qualname>, imports, externs, quit")

	for {
		input, err := line.Prompt("disasm> ")
		if err == io.EOF {
			fmt.Println()
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		fields := strings.Fields(input)
		switch fields[0] {
		case "quit", "exit", "q":
			return

		case "dis":
			if len(fields) < 2 {
				fmt.Fprintln(os.Stderr, red("Error")+": usage: dis <qualname>")
				continue
			}
			co, ok := byQualName[fields[1]]
			if !ok {
				fmt.Fprintf(os.Stderr, "%s: no code object named %q\n", red("Error"), fields[1])
				continue
			}
			printDisassembly(co)

		case "imports":
			instrs, err := bytecode.Decode(root.Code)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
				continue
			}
			found, err := imports.Scan(root, instrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
				continue
			}
			for _, imp := range found {
				fmt.Printf("  %s %s\n", yellow(kindName(imp.Kind)), imp.Name)
			}

		case "externs":
			instrs, err := bytecode.Decode(root.Code)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
				continue
			}
			found, err := externs.Scan(root, instrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
				continue
			}
			for _, ex := range found {
				fmt.Printf("  %s %s\n", yellow("@extern"), ex.Spec.Symbol)
			}

		default:
			fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", red("Error"), fields[0])
		}
	}
}

func kindName(k imports.Kind) string {
	if k == imports.Full {
		return "import"
	}
	return "from-import"
}

func collectCodeObjects(co *bytecode.CodeObject, out map[string]*bytecode.CodeObject) {
	out[co.QualName] = co
	for _, c := range co.Consts {
		if nested, ok := c.(*bytecode.CodeObject); ok {
			collectCodeObjects(nested, out)
		}
	}
}

func printDisassembly(co *bytecode.CodeObject) {
	instrs, err := bytecode.Decode(co.Code)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		return
	}

	fmt.Printf("%s (line %d)\n", bold(co.QualName), co.FirstLine)
	for _, instr := range instrs {
		line := "  " + instr.String()
		if preview, ok := constPreview(co, instr); ok {
			line += " " + yellow("("+preview+")")
		}
		fmt.Println(line)
	}
}

// constPreview returns a bounded, display-width-aware preview of the
// string constant a LOAD_CONST instruction references, for annotating
// disassembly dumps the way dis.dis annotates LOAD_CONST with its operand's
// repr. Non-string constants and out-of-range indices report ok=false.
func constPreview(co *bytecode.CodeObject, instr bytecode.Instruction) (string, bool) {
	if instr.Op != "LOAD_CONST" || instr.Arg == nil {
		return "", false
	}
	if *instr.Arg < 0 || *instr.Arg >= len(co.Consts) {
		return "", false
	}
	s, ok := co.Consts[*instr.Arg].(string)
	if !ok {
		return "", false
	}
	return constpool.Preview(s, previewWidth), true
}
