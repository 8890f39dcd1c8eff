// Command pyton transpiles precompiled Python bytecode into a
// freestanding C translation unit, and provides a read-only disassembly
// shell over a loaded .pyc for debugging the scanners that feed it.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	// Version info, set by ldflags during release builds.
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"

	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	var (
		versionFlag = flag.Bool("version", false, "print version information")
		helpFlag    = flag.Bool("help", false, "show help")
		input       = flag.String("i", "", "the entrypoint .pyc file (build)")
		artifacts   = flag.String("a", "artifacts", "the directory to write generated C into (build)")
		optimize    = flag.Bool("O", false, "reserved for the downstream C toolchain (build)")
		jsonOutput  = flag.Bool("json", false, "emit diagnostics as JSON instead of colorized text")
	)

	flag.Parse()

	if *versionFlag {
		printVersion()
		return
	}

	if *helpFlag || flag.NArg() == 0 {
		printHelp()
		return
	}

	switch flag.Arg(0) {
	case "build":
		if *input == "" {
			fmt.Fprintf(os.Stderr, "%s: -i is required\n", red("Error"))
			os.Exit(1)
		}
		buildCommand(*input, *artifacts, *optimize, *jsonOutput)

	case "disasm":
		if flag.NArg() < 2 {
			fmt.Fprintf(os.Stderr, "%s: missing .pyc argument\n", red("Error"))
			fmt.Println("Usage: pyton disasm <file.pyc>")
			os.Exit(1)
		}
		disasmCommand(flag.Arg(1))

	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", red("Error"), flag.Arg(0))
		printHelp()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("%s %s (commit %s, built %s)\n", bold("pyton"), Version, Commit, BuildTime)
}

func printHelp() {
	fmt.Println(bold("pyton") + " — transpiles precompiled Python bytecode to freestanding C")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pyton build -i <entrypoint.pyc> [-a artifacts] [-O] [--json]")
	fmt.Println("  pyton disasm <file.pyc>")
	fmt.Println()
	fmt.Println(yellow("note:") + " pyton only emits the translated .c file; invoking the C")
	fmt.Println("toolchain and running the resulting kernel are out of scope.")
}
