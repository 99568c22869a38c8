package integration

import (
	"bytes"
	"encoding/binary"
)

// buildClass assembles a minimal well-formed class file for className,
// superclassing java/lang/Object, with the given fields and zero
// methods. padding adds unreferenced Utf8 constants so two otherwise
// structurally identical classes can still differ byte-for-byte,
// simulating an edited method body without modeling code attributes.
// Mirrors internal/session's own test fixture builder, since this
// suite drives the real filesystem and sqlite adapters instead of the
// in-memory fakes and needs its own copy of the same class-file wire
// format.
func buildClass(className string, fieldDescriptors map[string]string, padding ...string) []byte {
	var cp bytes.Buffer
	var count uint16

	utf8 := func(s string) uint16 {
		cp.WriteByte(1)
		binary.Write(&cp, binary.BigEndian, uint16(len(s)))
		cp.WriteString(s)
		count++
		return count
	}
	class := func(nameIdx uint16) uint16 {
		cp.WriteByte(7)
		binary.Write(&cp, binary.BigEndian, nameIdx)
		count++
		return count
	}

	thisIdx := class(utf8(className))
	superIdx := class(utf8("java/lang/Object"))

	type builtField struct{ nameIdx, descIdx uint16 }
	var built []builtField
	for name, descriptor := range fieldDescriptors {
		built = append(built, builtField{utf8(name), utf8(descriptor)})
	}
	for _, p := range padding {
		utf8(p)
	}

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(0xCAFEBABE))
	binary.Write(&out, binary.BigEndian, uint16(0))
	binary.Write(&out, binary.BigEndian, uint16(61))
	binary.Write(&out, binary.BigEndian, count+1)
	out.Write(cp.Bytes())
	binary.Write(&out, binary.BigEndian, uint16(0x0021))
	binary.Write(&out, binary.BigEndian, thisIdx)
	binary.Write(&out, binary.BigEndian, superIdx)
	binary.Write(&out, binary.BigEndian, uint16(0))
	binary.Write(&out, binary.BigEndian, uint16(len(built)))
	for _, f := range built {
		binary.Write(&out, binary.BigEndian, uint16(0))
		binary.Write(&out, binary.BigEndian, f.nameIdx)
		binary.Write(&out, binary.BigEndian, f.descIdx)
		binary.Write(&out, binary.BigEndian, uint16(0))
	}
	binary.Write(&out, binary.BigEndian, uint16(0))
	return out.Bytes()
}
