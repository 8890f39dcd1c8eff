package main

import (
	"fmt"
	"os"

	"github.com/ascpixi/pyton/internal/bytecode"
	"github.com/ascpixi/pyton/internal/marshal"
)

// pycHeaderSize is the length of a PEP 552 .pyc header (magic number,
// bit field, and either an mtime+size pair or a source hash) that
// precedes the marshal stream on every compiled Python 3.7+ module.
const pycHeaderSize = 16

// fileLoader reads sibling .pyc files off disk, implementing
// internal/codegen.Loader.
type fileLoader struct{}

func (fileLoader) Load(path string) (*bytecode.CodeObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if len(data) < pycHeaderSize {
		return nil, fmt.Errorf("%s is too short to be a .pyc file", path)
	}

	return marshal.ReadCodeObject(data[pycHeaderSize:])
}
