package bytecode

// Const is the value of one entry in a code object's constants table.
// The concrete type is one of bool, nil (None), string, int64, float64,
// a Tuple, or a *CodeObject — the exact key space internal/constpool
// knows how to intern.
type Const any

// Tuple is a constant tuple; its elements are themselves Const values.
type Tuple []Const

// CodeObject is the input unit the transpiler consumes: one function
// body, class body, or module body, as produced by CPython's own
// compiler and read back via internal/marshal.
type CodeObject struct {
	QualName    string
	Name        string
	FirstLine   int
	StackSize   int
	ArgCount    int
	VarArgs     bool // CO_VARARGS
	VarKeywords bool // CO_VARKEYWORDS

	Consts    []Const  // co_consts, in first-discovery order
	Names     []string // co_names — attribute/global lookups
	VarNames  []string // co_varnames — locals, arguments first

	Code          []byte // raw co_code, two bytes per codeunit
	ExceptionTable []ExceptionEntry
}

// IsModule reports whether this code object is a module body (as opposed
// to a function or class body), the one fact the lowerer needs before it
// can classify LOAD_NAME/STORE_NAME scope.
func (c *CodeObject) IsModule() bool { return c.Name == "<module>" }

// ExceptionEntry is one bytecode range (both ends inclusive) covered by a handler, as
// exposed by CPython's zero-cost exception tables (PEP 657/3.11+).
type ExceptionEntry struct {
	Start  int // inclusive, in byte offsets
	End    int // inclusive
	Target int
	Depth  int
	Lasti  bool
}

// Covers reports whether the exception region contains the given
// instruction byte offset.
func (e ExceptionEntry) Covers(offset int) bool {
	return e.Start <= offset && offset <= e.End
}

// FindHandler returns the first exception-table entry covering offset, or
// nil if the offset is outside every handler's range. Table order matters
// here only in that CPython emits non-overlapping ranges for a given
// nesting level; pyton trusts the table as given rather than re-deriving
// nesting.
func FindHandler(table []ExceptionEntry, offset int) *ExceptionEntry {
	for i := range table {
		if table[i].Covers(offset) {
			return &table[i]
		}
	}
	return nil
}
