package instrument

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/wippyai/wasm-runtime/wasm"

	"github.com/sandboxvm/scruntime/types"
)

// ErrTextFormat is returned when the input looks like a text format module.
var ErrTextFormat = errors.New("input is in text format")

const funcTypeForm byte = 0x60

// scanner reads the binary format without materializing it. Every vector
// length is checked against the bytes left before it is trusted.
type scanner struct {
	data []byte
	r    *bytes.Reader
	base int
}

func newScanner(data []byte, base int) *scanner {
	return &scanner{data: data, r: bytes.NewReader(data), base: base}
}

func (s *scanner) offset() int { return s.base + len(s.data) - s.r.Len() }

func (s *scanner) eof() bool { return s.r.Len() == 0 }

func (s *scanner) errorf(format string, args ...any) error {
	return fmt.Errorf("offset %d: %s", s.offset(), fmt.Sprintf(format, args...))
}

func (s *scanner) wrap(err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return s.errorf("%v", err)
}

func (s *scanner) byte() (byte, error) {
	b, err := s.r.ReadByte()
	if err != nil {
		return 0, s.wrap(err)
	}
	return b, nil
}

func (s *scanner) u32() (uint32, error) {
	v, err := wasm.ReadLEB128u(s.r)
	if err != nil {
		return 0, s.wrap(err)
	}
	return v, nil
}

func (s *scanner) s32() (int32, error) {
	v, err := wasm.ReadLEB128s(s.r)
	if err != nil {
		return 0, s.wrap(err)
	}
	return v, nil
}

func (s *scanner) s64() (int64, error) {
	v, err := wasm.ReadLEB128s64(s.r)
	if err != nil {
		return 0, s.wrap(err)
	}
	return v, nil
}

// count reads a vector length. Each element takes at least one byte, so a
// length above the bytes left can never be satisfied.
func (s *scanner) count() (uint32, error) {
	n, err := s.u32()
	if err != nil {
		return 0, err
	}
	if int64(n) > int64(s.r.Len()) {
		return 0, s.errorf("vector length %d exceeds the %d bytes left", n, s.r.Len())
	}
	return n, nil
}

func (s *scanner) bytes(n uint32) ([]byte, error) {
	if int64(n) > int64(s.r.Len()) {
		return nil, s.errorf("length %d exceeds the %d bytes left", n, s.r.Len())
	}
	start := len(s.data) - s.r.Len()
	if _, err := s.r.Seek(int64(n), io.SeekCurrent); err != nil {
		return nil, s.wrap(err)
	}
	return s.data[start : start+int(n)], nil
}

func (s *scanner) name() error {
	n, err := s.count()
	if err != nil {
		return err
	}
	_, err = s.bytes(n)
	return err
}

func (s *scanner) sub() (*scanner, error) {
	n, err := s.u32()
	if err != nil {
		return nil, err
	}
	base := s.offset()
	payload, err := s.bytes(n)
	if err != nil {
		return nil, err
	}
	return newScanner(payload, base), nil
}

func unsupported(feature string, at int) error {
	return &types.UnsupportedFeatureError{Feature: feature, Offset: at}
}

// Check walks a binary module and rejects every proposal outside the
// allow-list (bulk memory, sign extension and saturating truncation on top of
// the MVP) with a *types.UnsupportedFeatureError. It also rejects sections
// and vectors whose declared sizes exceed the input, so that the decoder
// never allocates more than the input warrants.
func Check(data []byte) error {
	if len(data) < 8 || binary.LittleEndian.Uint32(data) != wasm.Magic {
		if IsText(data) {
			return ErrTextFormat
		}
		return wasm.ErrInvalidMagic
	}
	if binary.LittleEndian.Uint32(data[4:]) != wasm.Version {
		return wasm.ErrInvalidVersion
	}

	c := &checker{}
	s := newScanner(data[8:], 8)
	lastOrder := 0
	for !s.eof() {
		at := s.offset()
		id, err := s.byte()
		if err != nil {
			return err
		}
		ss, err := s.sub()
		if err != nil {
			return err
		}
		if id != wasm.SectionCustom {
			order := sectionOrder(id)
			if order == 0 {
				if id == wasm.SectionTag {
					return unsupported("exception-handling", at)
				}
				return fmt.Errorf("offset %d: unknown section id %d", at, id)
			}
			if order <= lastOrder {
				return fmt.Errorf("offset %d: section %d out of order", at, id)
			}
			lastOrder = order
		}
		if err := c.section(id, ss); err != nil {
			return err
		}
	}
	if c.functions != c.bodies {
		return fmt.Errorf("function and code section sizes differ: %d != %d", c.functions, c.bodies)
	}
	return nil
}

// IsText reports whether data looks like a text format module.
func IsText(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte("(module")) || bytes.HasPrefix(trimmed, []byte(";;"))
}

// sectionOrder returns the canonical position of a known non-custom section, 0 otherwise.
func sectionOrder(id byte) int {
	switch id {
	case wasm.SectionType:
		return 1
	case wasm.SectionImport:
		return 2
	case wasm.SectionFunction:
		return 3
	case wasm.SectionTable:
		return 4
	case wasm.SectionMemory:
		return 5
	case wasm.SectionGlobal:
		return 6
	case wasm.SectionExport:
		return 7
	case wasm.SectionStart:
		return 8
	case wasm.SectionElement:
		return 9
	case wasm.SectionDataCount:
		return 10
	case wasm.SectionCode:
		return 11
	case wasm.SectionData:
		return 12
	default:
		return 0
	}
}

type checker struct {
	memories  int
	functions uint32
	bodies    uint32
}

func (c *checker) section(id byte, s *scanner) error {
	switch id {
	case wasm.SectionCustom:
		return s.name()
	case wasm.SectionType:
		return vector(s, checkFuncType)
	case wasm.SectionImport:
		return vector(s, c.checkImport)
	case wasm.SectionFunction:
		n, err := s.count()
		if err != nil {
			return err
		}
		c.functions = n
		return repeat(s, n, func(s *scanner) error { _, err := s.u32(); return err })
	case wasm.SectionTable:
		return vector(s, checkTableType)
	case wasm.SectionMemory:
		at := s.offset()
		n, err := s.count()
		if err != nil {
			return err
		}
		c.memories += int(n)
		if c.memories > 1 {
			return unsupported("multi-memory", at)
		}
		return repeat(s, n, checkLimits)
	case wasm.SectionGlobal:
		return vector(s, func(s *scanner) error {
			if err := checkGlobalType(s); err != nil {
				return err
			}
			return checkConstExpr(s)
		})
	case wasm.SectionExport:
		return vector(s, checkExport)
	case wasm.SectionStart, wasm.SectionDataCount:
		_, err := s.u32()
		return err
	case wasm.SectionElement:
		return vector(s, checkElement)
	case wasm.SectionCode:
		n, err := s.count()
		if err != nil {
			return err
		}
		c.bodies = n
		return repeat(s, n, checkBody)
	case wasm.SectionData:
		return vector(s, checkData)
	}
	return nil
}

func vector(s *scanner, each func(*scanner) error) error {
	n, err := s.count()
	if err != nil {
		return err
	}
	return repeat(s, n, each)
}

func repeat(s *scanner, n uint32, each func(*scanner) error) error {
	for i := uint32(0); i < n; i++ {
		if err := each(s); err != nil {
			return err
		}
	}
	return nil
}

func checkValueType(s *scanner) error {
	at := s.offset()
	b, err := s.byte()
	if err != nil {
		return err
	}
	switch wasm.ValType(b) {
	case wasm.ValI32, wasm.ValI64, wasm.ValF32, wasm.ValF64:
		return nil
	case wasm.ValV128:
		return unsupported("simd", at)
	case wasm.ValFuncRef, wasm.ValExtern:
		return unsupported("reference-types", at)
	}
	return fmt.Errorf("offset %d: invalid value type 0x%02x", at, b)
}

func checkFuncType(s *scanner) error {
	at := s.offset()
	form, err := s.byte()
	if err != nil {
		return err
	}
	if form != funcTypeForm {
		return unsupported("gc", at)
	}
	if err := vector(s, checkValueType); err != nil {
		return err
	}
	results, err := s.count()
	if err != nil {
		return err
	}
	if results > 1 {
		return unsupported("multi-value", at)
	}
	return repeat(s, results, checkValueType)
}

func checkLimits(s *scanner) error {
	at := s.offset()
	flags, err := s.byte()
	if err != nil {
		return err
	}
	switch flags {
	case 0x00:
		_, err = s.u32()
	case 0x01:
		if _, err = s.u32(); err == nil {
			_, err = s.u32()
		}
	case 0x02, 0x03:
		return unsupported("threads", at)
	case 0x04, 0x05, 0x06, 0x07:
		return unsupported("memory64", at)
	default:
		return fmt.Errorf("offset %d: invalid limits flags 0x%02x", at, flags)
	}
	return err
}

func checkTableType(s *scanner) error {
	at := s.offset()
	ref, err := s.byte()
	if err != nil {
		return err
	}
	if wasm.ValType(ref) != wasm.ValFuncRef {
		return unsupported("reference-types", at)
	}
	return checkLimits(s)
}

func checkGlobalType(s *scanner) error {
	if err := checkValueType(s); err != nil {
		return err
	}
	at := s.offset()
	mut, err := s.byte()
	if err != nil {
		return err
	}
	if mut > 1 {
		return fmt.Errorf("offset %d: invalid mutability 0x%02x", at, mut)
	}
	return nil
}

func (c *checker) checkImport(s *scanner) error {
	if err := s.name(); err != nil {
		return err
	}
	if err := s.name(); err != nil {
		return err
	}
	at := s.offset()
	kind, err := s.byte()
	if err != nil {
		return err
	}
	switch kind {
	case wasm.KindFunc:
		_, err = s.u32()
		return err
	case wasm.KindTable:
		return checkTableType(s)
	case wasm.KindMemory:
		c.memories++
		if c.memories > 1 {
			return unsupported("multi-memory", at)
		}
		return checkLimits(s)
	case wasm.KindGlobal:
		return checkGlobalType(s)
	case wasm.KindTag:
		return unsupported("exception-handling", at)
	}
	return fmt.Errorf("offset %d: invalid import kind %d", at, kind)
}

func checkExport(s *scanner) error {
	if err := s.name(); err != nil {
		return err
	}
	at := s.offset()
	kind, err := s.byte()
	if err != nil {
		return err
	}
	switch kind {
	case wasm.KindFunc, wasm.KindTable, wasm.KindMemory, wasm.KindGlobal:
	case wasm.KindTag:
		return unsupported("exception-handling", at)
	default:
		return fmt.Errorf("offset %d: invalid export kind %d", at, kind)
	}
	_, err = s.u32()
	return err
}

// checkConstExpr accepts the MVP initializers: one constant or global.get
// followed by end.
func checkConstExpr(s *scanner) error {
	for {
		at := s.offset()
		op, err := s.byte()
		if err != nil {
			return err
		}
		switch op {
		case wasm.OpEnd:
			return nil
		case wasm.OpI32Const:
			_, err = s.s32()
		case wasm.OpI64Const:
			_, err = s.s64()
		case wasm.OpF32Const:
			_, err = s.bytes(4)
		case wasm.OpF64Const:
			_, err = s.bytes(8)
		case wasm.OpGlobalGet:
			_, err = s.u32()
		default:
			return unsupported("extended-const", at)
		}
		if err != nil {
			return err
		}
	}
}

// checkElementExpr accepts the initializers of expression element segments.
func checkElementExpr(s *scanner) error {
	for {
		at := s.offset()
		op, err := s.byte()
		if err != nil {
			return err
		}
		switch op {
		case wasm.OpEnd:
			return nil
		case wasm.OpRefFunc:
			_, err = s.u32()
		case wasm.OpRefNull:
			var ht byte
			if ht, err = s.byte(); err == nil && wasm.ValType(ht) != wasm.ValFuncRef {
				return unsupported("reference-types", at)
			}
		default:
			return unsupported("extended-const", at)
		}
		if err != nil {
			return err
		}
	}
}

func checkElement(s *scanner) error {
	at := s.offset()
	flags, err := s.u32()
	if err != nil {
		return err
	}
	if flags > 7 {
		return fmt.Errorf("offset %d: invalid element segment flags %d", at, flags)
	}
	if flags&0x02 != 0 && flags&0x01 == 0 {
		table, err := s.u32()
		if err != nil {
			return err
		}
		if table != 0 {
			return unsupported("reference-types", at)
		}
	}
	if flags&0x01 == 0 {
		if err := checkConstExpr(s); err != nil {
			return err
		}
	}
	exprs := flags&0x04 != 0
	if flags&0x03 != 0 {
		kind, err := s.byte()
		if err != nil {
			return err
		}
		if (exprs && wasm.ValType(kind) != wasm.ValFuncRef) || (!exprs && kind != 0x00) {
			return unsupported("reference-types", at)
		}
	}
	if exprs {
		return vector(s, checkElementExpr)
	}
	return vector(s, func(s *scanner) error { _, err := s.u32(); return err })
}

func checkData(s *scanner) error {
	at := s.offset()
	flags, err := s.u32()
	if err != nil {
		return err
	}
	switch flags {
	case 0:
	case 1:
	case 2:
		if err := readZeroMemory(s, at); err != nil {
			return err
		}
	default:
		return fmt.Errorf("offset %d: invalid data segment flags %d", at, flags)
	}
	if flags != 1 {
		if err := checkConstExpr(s); err != nil {
			return err
		}
	}
	n, err := s.u32()
	if err != nil {
		return err
	}
	_, err = s.bytes(n)
	return err
}

func checkBody(s *scanner) error {
	body, err := s.sub()
	if err != nil {
		return err
	}
	if err := vector(body, func(s *scanner) error {
		if _, err := s.u32(); err != nil {
			return err
		}
		return checkValueType(s)
	}); err != nil {
		return err
	}
	var last byte
	for !body.eof() {
		if last, err = checkInstruction(body); err != nil {
			return err
		}
	}
	if last != wasm.OpEnd {
		return body.errorf("function body does not end with end")
	}
	return nil
}

// checkInstruction consumes one instruction and returns its opcode.
func checkInstruction(s *scanner) (byte, error) {
	at := s.offset()
	op, err := s.byte()
	if err != nil {
		return 0, err
	}
	if feature, ok := disabledOpcodes[op]; ok {
		return 0, unsupported(feature, at)
	}
	if op == wasm.OpPrefixMisc {
		sub, err := s.u32()
		if err != nil {
			return 0, err
		}
		if feature, ok := disabledMiscOpcodes[sub]; ok {
			return 0, unsupported(feature, at)
		}
		misc, ok := miscOpcodes[sub]
		if !ok {
			return 0, s.errorf("unknown opcode 0xfc %d", sub)
		}
		return op, checkImmediate(s, misc.imm, at)
	}
	info, ok := opcodes[op]
	if !ok {
		return 0, s.errorf("unknown opcode 0x%02x", op)
	}
	return op, checkImmediate(s, info.imm, at)
}

func checkImmediate(s *scanner, imm immediate, at int) error {
	var err error
	switch imm {
	case immNone:
	case immBlockType:
		err = checkBlockType(s, at)
	case immIndex:
		_, err = s.u32()
	case immBrTable:
		var n uint32
		if n, err = s.count(); err != nil {
			break
		}
		for j := uint32(0); j <= n && err == nil; j++ {
			_, err = s.u32()
		}
	case immCallIndirect:
		if _, err = s.u32(); err != nil {
			break
		}
		var table uint32
		if table, err = s.u32(); err == nil && table != 0 {
			return unsupported("reference-types", at)
		}
	case immMemArg:
		var align uint32
		if align, err = s.u32(); err != nil {
			break
		}
		if align&0x40 != 0 {
			return unsupported("multi-memory", at)
		}
		_, err = s.u32()
	case immMemIndex:
		err = readZeroMemory(s, at)
	case immI32:
		_, err = s.s32()
	case immI64:
		_, err = s.s64()
	case immF32:
		_, err = s.bytes(4)
	case immF64:
		_, err = s.bytes(8)
	case immMemInit:
		if _, err = s.u32(); err != nil {
			break
		}
		err = readZeroMemory(s, at)
	case immMemCopy:
		if err = readZeroMemory(s, at); err != nil {
			break
		}
		err = readZeroMemory(s, at)
	case immIndexPair:
		if _, err = s.u32(); err != nil {
			break
		}
		_, err = s.u32()
	}
	return err
}

func checkBlockType(s *scanner, at int) error {
	bt, err := s.s64()
	if err != nil {
		return err
	}
	switch bt {
	case int64(wasm.BlockTypeVoid), int64(wasm.BlockTypeI32), int64(wasm.BlockTypeI64),
		int64(wasm.BlockTypeF32), int64(wasm.BlockTypeF64):
		return nil
	case int64(wasm.BlockTypeV128):
		return unsupported("simd", at)
	case -0x10, -0x11:
		return unsupported("reference-types", at)
	}
	return unsupported("multi-value", at)
}

func readZeroMemory(s *scanner, at int) error {
	idx, err := s.u32()
	if err != nil {
		return err
	}
	if idx != 0 {
		return unsupported("multi-memory", at)
	}
	return nil
}
