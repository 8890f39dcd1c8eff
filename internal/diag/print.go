package diag

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	errorLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	codeLabel  = color.New(color.FgYellow).SprintFunc()
	dimText    = color.New(color.Faint).SprintFunc()
)

// Print renders a Report to w the way the original implementation's
// util.error() did ("error: <message>"), enriched with the code and any
// disassembly, colorized the way cmd/pyton colorizes its own output.
func Print(w io.Writer, r *Report) {
	fmt.Fprintf(w, "%s %s\n", errorLabel("error:"), r.Message)
	fmt.Fprintf(w, "  %s %s\n", codeLabel(r.Code), dimText("("+r.Phase+")"))

	for k, v := range r.Data {
		fmt.Fprintf(w, "  %s: %v\n", k, v)
	}

	if r.Disasm != "" {
		fmt.Fprintln(w, dimText(r.Disasm))
	}
}
