package classid

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildClass assembles a minimal well-formed class file with no
// fields, methods, or interfaces — just enough for bytecode.Parse to
// resolve className/super.
func buildClass(t *testing.T, className, super string) []byte {
	t.Helper()

	type utf8Const struct{ s string }
	var pool []any // utf8Const or classConstIdx
	utf8 := func(s string) uint16 {
		pool = append(pool, utf8Const{s})
		return uint16(len(pool))
	}
	classConst := func(name string) uint16 {
		nameIdx := utf8(name)
		pool = append(pool, nameIdx)
		return uint16(len(pool))
	}

	thisIdx := classConst(className)
	var superIdx uint16
	if super != "" {
		superIdx = classConst(super)
	}

	var buf bytes.Buffer
	write := func(v any) {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}

	write(uint32(0xCAFEBABE))
	write(uint16(0))
	write(uint16(61))
	write(uint16(len(pool) + 1))
	for _, e := range pool {
		switch v := e.(type) {
		case utf8Const:
			write(byte(1)) // tagUtf8
			write(uint16(len(v.s)))
			buf.WriteString(v.s)
		case uint16:
			write(byte(7)) // tagClass
			write(v)
		}
	}
	write(uint16(0x0021)) // access_flags
	write(thisIdx)
	write(superIdx)
	write(uint16(0)) // interfaces_count
	write(uint16(0)) // fields_count
	write(uint16(0)) // methods_count

	return buf.Bytes()
}
