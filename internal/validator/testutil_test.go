package validator

import (
	"bytes"
	"encoding/binary"
	"testing"
)

type memberSpec struct {
	name       string
	descriptor string
	flags      uint16
}

// buildClass assembles a minimal well-formed class file for exercising
// Validate without a real JVM toolchain.
func buildClass(t *testing.T, className, super string, accessFlags uint16, interfaces []string, fields, methods []memberSpec) []byte {
	t.Helper()
	return buildClassWithNestHost(t, className, super, accessFlags, interfaces, fields, methods, "")
}

// buildClassWithNestHost is buildClass plus a class-level NestHost
// attribute naming nestHost, for exercising nest-host comparison.
func buildClassWithNestHost(t *testing.T, className, super string, accessFlags uint16, interfaces []string, fields, methods []memberSpec, nestHost string) []byte {
	t.Helper()

	type utf8Const struct{ s string }
	var pool []any
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
	ifaceIdx := make([]uint16, len(interfaces))
	for i, iface := range interfaces {
		ifaceIdx[i] = classConst(iface)
	}

	type builtMember struct {
		nameIdx uint16
		descIdx uint16
		flags   uint16
	}
	buildMembers := func(specs []memberSpec) []builtMember {
		out := make([]builtMember, len(specs))
		for i, s := range specs {
			out[i] = builtMember{nameIdx: utf8(s.name), descIdx: utf8(s.descriptor), flags: s.flags}
		}
		return out
	}
	builtFields := buildMembers(fields)
	builtMethods := buildMembers(methods)

	var nestHostAttrNameIdx, nestHostClassIdx uint16
	if nestHost != "" {
		nestHostAttrNameIdx = utf8("NestHost")
		nestHostClassIdx = classConst(nestHost)
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
			write(byte(1))
			write(uint16(len(v.s)))
			buf.WriteString(v.s)
		case uint16:
			write(byte(7))
			write(v)
		}
	}
	write(accessFlags)
	write(thisIdx)
	write(superIdx)
	write(uint16(len(ifaceIdx)))
	for _, idx := range ifaceIdx {
		write(idx)
	}
	write(uint16(len(builtFields)))
	for _, f := range builtFields {
		write(f.flags)
		write(f.nameIdx)
		write(f.descIdx)
		write(uint16(0))
	}
	write(uint16(len(builtMethods)))
	for _, m := range builtMethods {
		write(m.flags)
		write(m.nameIdx)
		write(m.descIdx)
		write(uint16(0))
	}

	if nestHost == "" {
		write(uint16(0)) // attributes_count
		return buf.Bytes()
	}

	write(uint16(1)) // attributes_count
	write(nestHostAttrNameIdx)
	write(uint32(2)) // attribute_length: one u2 host_class_index
	write(nestHostClassIdx)

	return buf.Bytes()
}
