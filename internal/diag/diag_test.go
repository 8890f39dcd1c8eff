package diag_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ascpixi/pyton/internal/diag"
)

func TestReportErrorPrefixed(t *testing.T) {
	r := diag.Unsupported("relative imports")
	assert.Equal(t, "error: UNS001: relative imports are not supported", r.Error())
}

func TestReportToJSON(t *testing.T) {
	r := diag.ImportNotFound("main.pyc", "something", "something.pyc")
	js, err := r.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, js, `"schema": "pyton.error/v1"`)
	assert.Contains(t, js, `"code": "IMP010"`)
}

func TestPrintIncludesCode(t *testing.T) {
	var buf bytes.Buffer
	diag.Print(&buf, diag.Unsupported("closures"))
	out := buf.String()
	assert.Contains(t, out, "error:")
	assert.Contains(t, out, "UNS001")
}
