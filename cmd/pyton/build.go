package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ascpixi/pyton/internal/codegen"
	"github.com/ascpixi/pyton/internal/config"
	"github.com/ascpixi/pyton/internal/diag"
	"github.com/ascpixi/pyton/internal/marshal"
)

func buildCommand(input, artifacts string, optimize, jsonOutput bool) {
	cfg, err := config.Load(filepath.Dir(input))
	if err != nil {
		reportFatal(err, jsonOutput)
	}
	artifacts, _ = config.ApplyDefaults(cfg, artifacts, optimize)

	data, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}
	if len(data) < pycHeaderSize {
		fmt.Fprintf(os.Stderr, "%s: %s is too short to be a .pyc file\n", red("Error"), input)
		os.Exit(1)
	}

	entrypoint, err := marshal.ReadCodeObject(data[pycHeaderSize:])
	if err != nil {
		reportFatal(err, jsonOutput)
	}

	tu := codegen.New(fileLoader{})
	mangled, err := tu.Translate(entrypoint, input, "__main__", false)
	if err != nil {
		reportFatal(err, jsonOutput)
	}

	source := tu.Transpile(mangled)

	if err := os.MkdirAll(artifacts, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}

	kernelName := baseNameNoExt(input)
	outPath := filepath.Join(artifacts, kernelName+".c")

	if err := os.WriteFile(outPath, []byte(source), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}

	fmt.Printf("%s %s\n", green("wrote"), outPath)
}

func baseNameNoExt(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

// reportFatal prints a diagnostic report (colorized, or as JSON with
// --json) and exits with a non-zero status.
func reportFatal(err error, jsonOutput bool) {
	if rep, ok := err.(*diag.Report); ok {
		if jsonOutput {
			if js, jerr := rep.ToJSON(); jerr == nil {
				fmt.Println(js)
				os.Exit(1)
			}
		}
		diag.Print(os.Stderr, rep)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
	os.Exit(1)
}
