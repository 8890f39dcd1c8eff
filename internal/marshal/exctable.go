package marshal

import "github.com/ascpixi/pyton/internal/bytecode"

// parseExceptionTable decodes CPython's compact "zero-cost" exception
// table encoding (introduced for the PEP 657 fine-grained tracebacks /
// 3.11 frame redesign): a flat sequence of varint-encoded entries, each
// (start, length, target, depth_and_lasti), all expressed in code units
// (2 bytes each) except depth_and_lasti, which packs the handler's stack
// depth and a "last instruction" flag into one value.
func parseExceptionTable(raw []byte) ([]bytecode.ExceptionEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	p := &varintReader{data: raw}
	var out []bytecode.ExceptionEntry

	for p.pos < len(p.data) {
		start, err := p.next()
		if err != nil {
			return nil, err
		}
		length, err := p.next()
		if err != nil {
			return nil, err
		}
		target, err := p.next()
		if err != nil {
			return nil, err
		}
		dl, err := p.next()
		if err != nil {
			return nil, err
		}

		startOffset := start * 2
		endOffset := startOffset + length*2 - 2

		out = append(out, bytecode.ExceptionEntry{
			Start:  startOffset,
			End:    endOffset,
			Target: target * 2,
			Depth:  dl >> 1,
			Lasti:  dl&1 != 0,
		})
	}

	return out, nil
}

type varintReader struct {
	data []byte
	pos  int
}

// next decodes one varint: 6 data bits per byte, most significant chunk
// first, continuing while bit 0x40 is set.
func (p *varintReader) next() (int, error) {
	if p.pos >= len(p.data) {
		return 0, &ErrCorruptMarshal{Offset: p.pos, Reason: "truncated exception table varint"}
	}

	b := p.data[p.pos]
	p.pos++
	val := int(b & 0x3f)

	for b&0x40 != 0 {
		if p.pos >= len(p.data) {
			return 0, &ErrCorruptMarshal{Offset: p.pos, Reason: "truncated exception table varint"}
		}
		b = p.data[p.pos]
		p.pos++
		val = (val << 6) | int(b&0x3f)
	}

	return val, nil
}
