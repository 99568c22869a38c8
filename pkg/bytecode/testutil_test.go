package bytecode

import (
	"bytes"
	"encoding/binary"
)

// cpBuilder assembles a constant pool for a minimal, well-formed class
// file. build() supports exactly what Parse reads: a constant pool,
// this/super class, interfaces, and field/method signatures with zero
// attributes.
type cpBuilder struct {
	entries []cpEntryBuild
}

type cpEntryBuild struct {
	tag  cpTag
	utf8 string
	idx1 uint16
	idx2 uint16
}

func (c *cpBuilder) utf8Const(s string) uint16 {
	c.entries = append(c.entries, cpEntryBuild{tag: tagUtf8, utf8: s})
	return uint16(len(c.entries))
}

func (c *cpBuilder) classConst(name string) uint16 {
	nameIdx := c.utf8Const(name)
	c.entries = append(c.entries, cpEntryBuild{tag: tagClass, idx1: nameIdx})
	return uint16(len(c.entries))
}

type memberSpec struct {
	name       string
	descriptor string
	flags      uint16
}

// build assembles a class file with the given super/interfaces/fields/
// methods. Field and method descriptors/names are interned as fresh
// Utf8 constants; no attributes are emitted.
func build(t interface {
	Fatalf(format string, args ...any)
}, className, superClass string, interfaces []string, fields, methods []memberSpec) []byte {
	cp := &cpBuilder{}
	thisIdx := cp.classConst(className)
	var superIdx uint16
	if superClass != "" {
		superIdx = cp.classConst(superClass)
	}
	ifaceIdx := make([]uint16, len(interfaces))
	for i, iface := range interfaces {
		ifaceIdx[i] = cp.classConst(iface)
	}

	type builtMember struct {
		nameIdx uint16
		descIdx uint16
		flags   uint16
	}
	buildMembers := func(specs []memberSpec) []builtMember {
		out := make([]builtMember, len(specs))
		for i, s := range specs {
			out[i] = builtMember{
				nameIdx: cp.utf8Const(s.name),
				descIdx: cp.utf8Const(s.descriptor),
				flags:   s.flags,
			}
		}
		return out
	}
	builtFields := buildMembers(fields)
	builtMethods := buildMembers(methods)

	var buf bytes.Buffer
	write := func(v any) {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}

	write(uint32(magic))
	write(uint16(0))                          // minor
	write(uint16(61))                         // major
	write(uint16(len(cp.entries) + 1))        // constant_pool_count
	for _, e := range cp.entries {
		write(byte(e.tag))
		switch e.tag {
		case tagUtf8:
			write(uint16(len(e.utf8)))
			buf.WriteString(e.utf8)
		case tagClass:
			write(e.idx1)
		}
	}
	write(uint16(0x0021)) // access_flags: ACC_PUBLIC | ACC_SUPER
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
		write(uint16(0)) // attributes_count
	}
	write(uint16(len(builtMethods)))
	for _, m := range builtMethods {
		write(m.flags)
		write(m.nameIdx)
		write(m.descIdx)
		write(uint16(0)) // attributes_count
	}

	return buf.Bytes()
}

// buildNested is build's sibling for exercising the class-level
// attribute list: a minimal class with no fields or methods, carrying
// a NestHost attribute naming nestHost when it's non-empty.
func buildNested(t interface {
	Fatalf(format string, args ...any)
}, className, nestHost string) []byte {
	cp := &cpBuilder{}
	thisIdx := cp.classConst(className)
	superIdx := cp.classConst("java/lang/Object")

	var nestHostAttrNameIdx, nestHostClassIdx uint16
	if nestHost != "" {
		nestHostAttrNameIdx = cp.utf8Const("NestHost")
		nestHostClassIdx = cp.classConst(nestHost)
	}

	var buf bytes.Buffer
	write := func(v any) {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}

	write(uint32(magic))
	write(uint16(0))                   // minor
	write(uint16(61))                  // major
	write(uint16(len(cp.entries) + 1)) // constant_pool_count
	for _, e := range cp.entries {
		write(byte(e.tag))
		switch e.tag {
		case tagUtf8:
			write(uint16(len(e.utf8)))
			buf.WriteString(e.utf8)
		case tagClass:
			write(e.idx1)
		}
	}
	write(uint16(0x0021)) // access_flags: ACC_PUBLIC | ACC_SUPER
	write(thisIdx)
	write(superIdx)
	write(uint16(0)) // interfaces_count
	write(uint16(0)) // fields_count
	write(uint16(0)) // methods_count

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
