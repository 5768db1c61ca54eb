package wasm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Wasm constants.
const (
	wasmHeaderSize      = 8
	wasmSectionIDExport = 7
	wasmSectionIDStart  = 8
	wasmVersion         = 1
	leb128ValueMask     = 0x7f
	leb128ContinueMask  = 0x80
	leb128MaxBytesU32   = 5
)

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d} //nolint:gochecknoglobals // \0asm

// ExportKind is the kind byte of an export entry.
type ExportKind byte

// Export kinds.
const (
	ExportFunction ExportKind = 0x00
	ExportTable    ExportKind = 0x01
	ExportMemory   ExportKind = 0x02
	ExportGlobal   ExportKind = 0x03
)

// Export is one entry of a module's export section.
type Export struct {
	Name  string
	Kind  ExportKind
	Index uint32
}

// section represents a WebAssembly section.
type section struct {
	id   byte
	body []byte
}

// ensureMagic checks for the Wasm magic bytes and version.
func ensureMagic(b []byte) error {
	if len(b) < wasmHeaderSize {
		return errors.New("file too small")
	}
	if !bytes.Equal(b[:4], wasmMagic) {
		return errors.New("bad wasm magic")
	}
	if binary.LittleEndian.Uint32(b[4:wasmHeaderSize]) != wasmVersion {
		return errors.New("unsupported wasm version")
	}
	return nil
}

// parseSections splits the bytes after the header into sections.
func parseSections(b []byte) ([]section, error) {
	var secs []section
	off := 0
	for off < len(b) {
		id := b[off]
		off++

		size, n := readU32(b[off:])
		if n == 0 {
			return nil, errors.New("invalid section size")
		}
		off += n

		if off+int(size) > len(b) {
			return nil, errors.New("section exceeds file")
		}
		secs = append(secs, section{id: id, body: b[off : off+int(size)]})
		off += int(size)
	}
	return secs, nil
}

// ListExports returns every export of a module in declaration order.
func ListExports(data []byte) ([]Export, error) {
	if err := ensureMagic(data); err != nil {
		return nil, err
	}
	secs, err := parseSections(data[wasmHeaderSize:])
	if err != nil {
		return nil, err
	}
	var exports []Export
	for _, s := range secs {
		if s.id != wasmSectionIDExport {
			continue
		}
		found, err := parseExports(s.body)
		if err != nil {
			return nil, err
		}
		exports = append(exports, found...)
	}
	return exports, nil
}

// CheckPluginSchema verifies the module exports the function marking the
// plugin schema version the host speaks.
func CheckPluginSchema(data []byte, schemaExport string) error {
	exports, err := ListExports(data)
	if err != nil {
		return fmt.Errorf("invalid wasm module: %w", err)
	}
	for _, e := range exports {
		if e.Kind == ExportFunction && e.Name == schemaExport {
			return nil
		}
	}
	return fmt.Errorf("plugin does not export %s; it was built for an unsupported plugin schema version", schemaExport)
}

func parseExports(b []byte) ([]Export, error) {
	off := 0
	count, n := readU32(b)
	if n == 0 {
		return nil, errors.New("bad export count")
	}
	off += n

	exports := make([]Export, 0, count)
	for j := 0; j < int(count); j++ {
		name, nn := readName(b[off:])
		if nn == 0 {
			return nil, errors.New("bad export name")
		}
		off += nn

		if off >= len(b) {
			return nil, errors.New("truncated export kind")
		}
		kind := ExportKind(b[off])
		off++

		idx, ni := readU32(b[off:])
		if ni == 0 {
			return nil, errors.New("bad export index")
		}
		off += ni

		exports = append(exports, Export{Name: name, Kind: kind, Index: idx})
	}
	return exports, nil
}

// readU32 reads a LEB128-encoded unsigned 32-bit integer.
func readU32(b []byte) (uint32, int) {
	var x uint32
	var s uint
	for i := 0; i < len(b) && i < leb128MaxBytesU32; i++ {
		c := b[i]
		x |= uint32(c&leb128ValueMask) << s
		if c&leb128ContinueMask == 0 {
			return x, i + 1
		}
		s += 7
	}
	return 0, 0
}

// writeU32 writes x as a LEB128-encoded unsigned 32-bit integer.
func writeU32(x uint32) []byte {
	var out []byte
	for {
		c := byte(x & leb128ValueMask)
		x >>= 7
		if x != 0 {
			c |= leb128ContinueMask
		}
		out = append(out, c)
		if x == 0 {
			return out
		}
	}
}

// readName reads a length prefixed string.
func readName(b []byte) (string, int) {
	l, n := readU32(b)
	if n == 0 {
		return "", 0
	}
	if int(l)+n > len(b) {
		return "", 0
	}
	return string(b[n : n+int(l)]), n + int(l)
}

// StripStartSection removes the start section (id 8) if present.
// wasmer-go refuses modules that have one; the host calls _initialize
// itself instead.
func StripStartSection(b []byte) []byte {
	if len(b) < wasmHeaderSize {
		return b
	}
	header := b[:wasmHeaderSize]
	rest := b[wasmHeaderSize:]

	out := make([]byte, 0, len(b))
	out = append(out, header...)

	for off := 0; off < len(rest); {
		id := rest[off]
		off++
		size, n := readU32(rest[off:])
		if n == 0 || off+n+int(size) > len(rest) {
			return b
		}
		off += n
		bodyStart := off
		bodyEnd := off + int(size)

		if id != wasmSectionIDStart {
			out = append(out, id)
			out = append(out, writeU32(size)...)
			out = append(out, rest[bodyStart:bodyEnd]...)
		}
		off = bodyEnd
	}
	return out
}
