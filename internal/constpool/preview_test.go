package constpool_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ascpixi/pyton/internal/constpool"
)

func TestPreviewShortStringUntouched(t *testing.T) {
	assert.Equal(t, "hello", constpool.Preview("hello", 20))
}

func TestPreviewTruncatesLongString(t *testing.T) {
	s := "this is a rather long constant string that should be truncated"
	out := constpool.Preview(s, 16)
	assert.LessOrEqual(t, len([]rune(out)), 16)
	assert.Contains(t, out, "…")
}

func TestPreviewAccountsForFullwidthRunes(t *testing.T) {
	// Each of these CJK characters occupies two display cells.
	out := constpool.Preview("文文文文文文文文", 8)
	assert.Contains(t, out, "…")
}
