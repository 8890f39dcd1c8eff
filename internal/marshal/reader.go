// Package marshal decodes the CPython "marshal" object-graph wire format —
// the serialization CPython's own compiler uses for .pyc files — into the
// internal/bytecode data model. pyton never invokes a Python compiler
// itself; it reads code objects CPython already compiled ahead of time.
package marshal

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ascpixi/pyton/internal/bytecode"
)

// Type tags, pinned to CPython's Python/marshal.c.
const (
	typeNull               = '0'
	typeNone               = 'N'
	typeFalse              = 'F'
	typeTrue               = 'T'
	typeStopIter           = 'S'
	typeEllipsis           = '.'
	typeInt                = 'i'
	typeFloatText          = 'f'
	typeBinaryFloat        = 'g'
	typeLong               = 'l'
	typeString             = 's'
	typeInterned           = 't'
	typeRef                = 'r'
	typeTuple              = '('
	typeSmallTuple         = ')'
	typeList               = '['
	typeDict               = '{'
	typeCode               = 'c'
	typeUnicode            = 'u'
	typeASCII              = 'a'
	typeASCIIInterned      = 'A'
	typeShortASCII         = 'z'
	typeShortASCIIInterned = 'Z'

	flagRef = 0x80
)

// ErrCorruptMarshal is returned for any malformed or unrecognized marshal
// stream — truncated input, an unknown type tag, or a dangling TYPE_REF.
type ErrCorruptMarshal struct {
	Offset int
	Reason string
}

func (e *ErrCorruptMarshal) Error() string {
	return fmt.Sprintf("corrupt marshal stream at offset %d: %s", e.Offset, e.Reason)
}

type reader struct {
	data []byte
	pos  int
	refs []any
}

// ReadCodeObject decodes a single top-level marshaled value out of data and
// asserts it is a code object — the shape every .pyc's body has after its
// header (magic number, bit field, and mtime/hash) has been stripped by
// the caller.
func ReadCodeObject(data []byte) (*bytecode.CodeObject, error) {
	r := &reader{data: data}
	v, err := r.readValue()
	if err != nil {
		return nil, err
	}

	co, ok := v.(*bytecode.CodeObject)
	if !ok {
		return nil, &ErrCorruptMarshal{Offset: 0, Reason: "top-level marshal value is not a code object"}
	}

	return co, nil
}

func (r *reader) fail(reason string) error {
	return &ErrCorruptMarshal{Offset: r.pos, Reason: reason}
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, r.fail("unexpected end of stream")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, r.fail("negative length")
	}
	if r.pos+n > len(r.data) {
		return nil, r.fail("unexpected end of stream")
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) int32() (int32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (r *reader) readValue() (any, error) {
	tag, err := r.byte()
	if err != nil {
		return nil, err
	}

	hasRef := tag&flagRef != 0
	code := tag &^ flagRef

	var refIdx int
	if hasRef {
		refIdx = len(r.refs)
		r.refs = append(r.refs, nil) // reserved slot, filled in below
	}

	v, err := r.readBody(code)
	if err != nil {
		return nil, err
	}

	if hasRef {
		r.refs[refIdx] = v
	}

	return v, nil
}

func (r *reader) readBody(code byte) (any, error) {
	switch code {
	case typeNull:
		return nil, nil
	case typeNone:
		return nil, nil
	case typeFalse:
		return false, nil
	case typeTrue:
		return true, nil
	case typeStopIter, typeEllipsis:
		return nil, nil
	case typeInt:
		v, err := r.int32()
		return int64(v), err
	case typeLong:
		return r.readLong()
	case typeBinaryFloat:
		b, err := r.bytes(8)
		if err != nil {
			return nil, err
		}
		bits := binary.LittleEndian.Uint64(b)
		return math.Float64frombits(bits), nil
	case typeFloatText:
		n, err := r.byte()
		if err != nil {
			return nil, err
		}
		s, err := r.bytes(int(n))
		if err != nil {
			return nil, err
		}
		var f float64
		if _, err := fmt.Sscanf(string(s), "%g", &f); err != nil {
			return nil, r.fail("malformed float text")
		}
		return f, nil
	case typeString, typeUnicode, typeASCII, typeASCIIInterned, typeInterned:
		n, err := r.int32()
		if err != nil {
			return nil, err
		}
		s, err := r.bytes(int(n))
		if err != nil {
			return nil, err
		}
		return string(s), nil
	case typeShortASCII, typeShortASCIIInterned:
		n, err := r.byte()
		if err != nil {
			return nil, err
		}
		s, err := r.bytes(int(n))
		if err != nil {
			return nil, err
		}
		return string(s), nil
	case typeTuple, typeList:
		n, err := r.int32()
		if err != nil {
			return nil, err
		}
		return r.readSequence(int(n))
	case typeSmallTuple:
		n, err := r.byte()
		if err != nil {
			return nil, err
		}
		return r.readSequence(int(n))
	case typeDict:
		// Only appears for co_consts' annotation dict path, which pyton's
		// simplifier elides before it reaches the interner; decode and
		// discard its entries so the stream stays aligned.
		for {
			k, err := r.readValue()
			if err != nil {
				return nil, err
			}
			if k == nil {
				break
			}
			if _, err := r.readValue(); err != nil {
				return nil, err
			}
		}
		return bytecode.Tuple{}, nil
	case typeRef:
		idx, err := r.int32()
		if err != nil {
			return nil, err
		}
		if int(idx) < 0 || int(idx) >= len(r.refs) {
			return nil, r.fail("dangling backreference")
		}
		return r.refs[idx], nil
	case typeCode:
		return r.readCode()
	default:
		return nil, r.fail(fmt.Sprintf("unrecognized marshal type tag 0x%02x (%q)", code, string(rune(code))))
	}
}

func (r *reader) readSequence(n int) (bytecode.Tuple, error) {
	if n < 0 {
		return nil, r.fail("negative sequence length")
	}
	items := make(bytecode.Tuple, n)
	for i := 0; i < n; i++ {
		v, err := r.readValue()
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	return items, nil
}

// readLong decodes TYPE_LONG's portable digit encoding: a signed digit
// count (sign carries the integer's sign), followed by that many 15-bit
// digits, least-significant first, each stored as a little-endian
// uint16 — independent of CPython's internal 30-bit digit width.
func (r *reader) readLong() (int64, error) {
	n, err := r.int32()
	if err != nil {
		return 0, err
	}

	negative := n < 0
	count := int(n)
	if negative {
		count = -count
	}

	var value int64
	for i := 0; i < count; i++ {
		b, err := r.bytes(2)
		if err != nil {
			return 0, err
		}
		digit := int64(binary.LittleEndian.Uint16(b))
		value |= digit << (15 * i)
	}

	if negative {
		value = -value
	}

	return value, nil
}

func (r *reader) readCode() (*bytecode.CodeObject, error) {
	argCount, err := r.int32()
	if err != nil {
		return nil, err
	}
	if _, err := r.int32(); err != nil { // posonlyargcount
		return nil, err
	}
	if _, err := r.int32(); err != nil { // kwonlyargcount
		return nil, err
	}
	stackSize, err := r.int32()
	if err != nil {
		return nil, err
	}
	flags, err := r.int32()
	if err != nil {
		return nil, err
	}

	codeBytesVal, err := r.readValue()
	if err != nil {
		return nil, err
	}
	codeBytes, ok := codeBytesVal.(string)
	if !ok {
		return nil, r.fail("co_code is not a byte string")
	}

	constsVal, err := r.readValue()
	if err != nil {
		return nil, err
	}
	consts, _ := constsVal.(bytecode.Tuple)

	namesVal, err := r.readValue()
	if err != nil {
		return nil, err
	}
	names, err := stringTuple(namesVal)
	if err != nil {
		return nil, r.fail("co_names: " + err.Error())
	}

	localsPlusNamesVal, err := r.readValue()
	if err != nil {
		return nil, err
	}
	varNames, err := stringTuple(localsPlusNamesVal)
	if err != nil {
		return nil, r.fail("localsplusnames: " + err.Error())
	}

	if _, err := r.readValue(); err != nil { // localspluskinds (bytes)
		return nil, err
	}

	if _, err := r.readValue(); err != nil { // filename
		return nil, err
	}

	nameVal, err := r.readValue()
	if err != nil {
		return nil, err
	}
	name, _ := nameVal.(string)

	qualNameVal, err := r.readValue()
	if err != nil {
		return nil, err
	}
	qualName, _ := qualNameVal.(string)

	firstLine, err := r.int32()
	if err != nil {
		return nil, err
	}

	if _, err := r.readValue(); err != nil { // linetable
		return nil, err
	}

	excTableVal, err := r.readValue()
	if err != nil {
		return nil, err
	}
	excTableRaw, _ := excTableVal.(string)

	excTable, err := parseExceptionTable([]byte(excTableRaw))
	if err != nil {
		return nil, r.fail("exception table: " + err.Error())
	}

	const coVarArgs = 0x0004
	const coVarKeywords = 0x0008

	return &bytecode.CodeObject{
		QualName:       qualName,
		Name:           name,
		FirstLine:      int(firstLine),
		StackSize:      int(stackSize),
		ArgCount:       int(argCount),
		VarArgs:        flags&coVarArgs != 0,
		VarKeywords:    flags&coVarKeywords != 0,
		Consts:         consts,
		Names:          names,
		VarNames:       varNames,
		Code:           []byte(codeBytes),
		ExceptionTable: excTable,
	}, nil
}

func stringTuple(v any) ([]string, error) {
	t, ok := v.(bytecode.Tuple)
	if !ok {
		return nil, fmt.Errorf("expected a tuple")
	}

	out := make([]string, len(t))
	for i, item := range t {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected string element at index %d", i)
		}
		out[i] = s
	}
	return out, nil
}
