// Package bytecode parses the binary class-file format well enough to
// support C4 (class identity resolution) and C5 (the bytecode
// compatibility validator) from spec.md. It reads only the structural
// skeleton the validator needs — constant pool, access flags, this/super
// class, interfaces, field and method signatures — and never executes
// or verifies bytecode.
package bytecode

import (
	"encoding/binary"
	"fmt"
)

const magic = 0xCAFEBABE

// Class access flag bits relevant to redefinition compatibility
// (spec.md §4.5: "public/final/abstract/enum/interface bits stable").
const (
	AccPublic    uint16 = 0x0001
	AccFinal     uint16 = 0x0010
	AccInterface uint16 = 0x0200
	AccAbstract  uint16 = 0x0400
	AccEnum      uint16 = 0x4000
)

// StabilityMask isolates the access-flag bits spec.md requires to stay
// unchanged across a redefinable change.
const StabilityMask = AccPublic | AccFinal | AccInterface | AccAbstract | AccEnum

// cpTag identifies a constant pool entry kind.
type cpTag byte

const (
	tagUtf8               cpTag = 1
	tagInteger            cpTag = 3
	tagFloat              cpTag = 4
	tagLong               cpTag = 5
	tagDouble             cpTag = 6
	tagClass              cpTag = 7
	tagString             cpTag = 8
	tagFieldref           cpTag = 9
	tagMethodref          cpTag = 10
	tagInterfaceMethodref cpTag = 11
	tagNameAndType        cpTag = 12
	tagMethodHandle       cpTag = 15
	tagMethodType         cpTag = 16
	tagDynamic            cpTag = 17
	tagInvokeDynamic      cpTag = 18
	tagModule             cpTag = 19
	tagPackage            cpTag = 20
)

type cpEntry struct {
	tag   cpTag
	utf8  string
	idx1  uint16
	idx2  uint16
}

// Member describes a field or method signature.
type Member struct {
	Name       string
	Descriptor string
	AccessFlags uint16
}

// Key returns the (name, descriptor) identity used to match members
// across versions of a class.
func (m Member) Key() string { return m.Name + m.Descriptor }

// ClassFile is the parsed structural skeleton of a .class file.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	AccessFlags  uint16
	ClassName    string
	SuperClass   string
	Interfaces   []string
	Fields       []Member
	Methods      []Member
	ConstantPoolSize int
	NestHost     string
}

// ErrMalformed wraps any parse failure; the validator maps it to
// RejectCategory SECURITY/UNKNOWN "malformed bytecode" (spec.md §4.5).
type ErrMalformed struct {
	Reason string
}

func (e *ErrMalformed) Error() string { return "malformed bytecode: " + e.Reason }

type reader struct {
	data []byte
	pos  int
}

func (r *reader) u1() (byte, error) {
	if r.pos+1 > len(r.data) {
		return 0, fmt.Errorf("eof reading u1")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) u2() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, fmt.Errorf("eof reading u2")
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u4() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("eof reading u4")
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) skip(n int) error {
	if r.pos+n > len(r.data) {
		return fmt.Errorf("eof skipping %d bytes", n)
	}
	r.pos += n
	return nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("eof reading %d bytes", n)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Parse reads a class file's structural skeleton. It returns
// *ErrMalformed for any structurally invalid input.
func Parse(data []byte) (*ClassFile, error) {
	r := &reader{data: data}

	m, err := r.u4()
	if err != nil || m != magic {
		return nil, &ErrMalformed{Reason: "bad magic number"}
	}

	minor, err := r.u2()
	if err != nil {
		return nil, &ErrMalformed{Reason: err.Error()}
	}
	major, err := r.u2()
	if err != nil {
		return nil, &ErrMalformed{Reason: err.Error()}
	}

	cpCount, err := r.u2()
	if err != nil {
		return nil, &ErrMalformed{Reason: err.Error()}
	}

	pool := make([]cpEntry, cpCount)
	for i := 1; i < int(cpCount); i++ {
		tagByte, err := r.u1()
		if err != nil {
			return nil, &ErrMalformed{Reason: err.Error()}
		}
		tag := cpTag(tagByte)
		switch tag {
		case tagUtf8:
			length, err := r.u2()
			if err != nil {
				return nil, &ErrMalformed{Reason: err.Error()}
			}
			b, err := r.bytes(int(length))
			if err != nil {
				return nil, &ErrMalformed{Reason: err.Error()}
			}
			pool[i] = cpEntry{tag: tag, utf8: string(b)}
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			idx, err := r.u2()
			if err != nil {
				return nil, &ErrMalformed{Reason: err.Error()}
			}
			pool[i] = cpEntry{tag: tag, idx1: idx}
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			idx1, err := r.u2()
			if err != nil {
				return nil, &ErrMalformed{Reason: err.Error()}
			}
			idx2, err := r.u2()
			if err != nil {
				return nil, &ErrMalformed{Reason: err.Error()}
			}
			pool[i] = cpEntry{tag: tag, idx1: idx1, idx2: idx2}
		case tagInteger, tagFloat:
			if err := r.skip(4); err != nil {
				return nil, &ErrMalformed{Reason: err.Error()}
			}
			pool[i] = cpEntry{tag: tag}
		case tagLong, tagDouble:
			if err := r.skip(8); err != nil {
				return nil, &ErrMalformed{Reason: err.Error()}
			}
			pool[i] = cpEntry{tag: tag}
			i++ // long/double occupy two constant pool slots
		case tagMethodHandle:
			if _, err := r.u1(); err != nil {
				return nil, &ErrMalformed{Reason: err.Error()}
			}
			if _, err := r.u2(); err != nil {
				return nil, &ErrMalformed{Reason: err.Error()}
			}
			pool[i] = cpEntry{tag: tag}
		default:
			return nil, &ErrMalformed{Reason: fmt.Sprintf("unknown constant pool tag %d", tag)}
		}
	}

	resolveClassName := func(classIdx uint16) (string, error) {
		if int(classIdx) >= len(pool) {
			return "", fmt.Errorf("class index out of range")
		}
		entry := pool[classIdx]
		if entry.tag != tagClass {
			return "", fmt.Errorf("expected Class constant at index %d", classIdx)
		}
		if int(entry.idx1) >= len(pool) || pool[entry.idx1].tag != tagUtf8 {
			return "", fmt.Errorf("expected Utf8 constant for class name")
		}
		return pool[entry.idx1].utf8, nil
	}

	accessFlags, err := r.u2()
	if err != nil {
		return nil, &ErrMalformed{Reason: err.Error()}
	}
	thisClassIdx, err := r.u2()
	if err != nil {
		return nil, &ErrMalformed{Reason: err.Error()}
	}
	superClassIdx, err := r.u2()
	if err != nil {
		return nil, &ErrMalformed{Reason: err.Error()}
	}

	className, err := resolveClassName(thisClassIdx)
	if err != nil {
		return nil, &ErrMalformed{Reason: err.Error()}
	}
	var superName string
	if superClassIdx != 0 {
		superName, err = resolveClassName(superClassIdx)
		if err != nil {
			return nil, &ErrMalformed{Reason: err.Error()}
		}
	}

	ifaceCount, err := r.u2()
	if err != nil {
		return nil, &ErrMalformed{Reason: err.Error()}
	}
	interfaces := make([]string, 0, ifaceCount)
	for i := 0; i < int(ifaceCount); i++ {
		idx, err := r.u2()
		if err != nil {
			return nil, &ErrMalformed{Reason: err.Error()}
		}
		name, err := resolveClassName(idx)
		if err != nil {
			return nil, &ErrMalformed{Reason: err.Error()}
		}
		interfaces = append(interfaces, name)
	}

	readMembers := func() ([]Member, error) {
		count, err := r.u2()
		if err != nil {
			return nil, err
		}
		members := make([]Member, 0, count)
		for i := 0; i < int(count); i++ {
			flags, err := r.u2()
			if err != nil {
				return nil, err
			}
			nameIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			descIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			attrCount, err := r.u2()
			if err != nil {
				return nil, err
			}
			if int(nameIdx) >= len(pool) || pool[nameIdx].tag != tagUtf8 {
				return nil, fmt.Errorf("bad member name index")
			}
			if int(descIdx) >= len(pool) || pool[descIdx].tag != tagUtf8 {
				return nil, fmt.Errorf("bad member descriptor index")
			}
			for a := 0; a < int(attrCount); a++ {
				if _, err := r.u2(); err != nil { // attribute_name_index
					return nil, err
				}
				length, err := r.u4()
				if err != nil {
					return nil, err
				}
				if err := r.skip(int(length)); err != nil {
					return nil, err
				}
			}
			members = append(members, Member{
				Name:        pool[nameIdx].utf8,
				Descriptor:  pool[descIdx].utf8,
				AccessFlags: flags,
			})
		}
		return members, nil
	}

	fields, err := readMembers()
	if err != nil {
		return nil, &ErrMalformed{Reason: err.Error()}
	}
	methods, err := readMembers()
	if err != nil {
		return nil, &ErrMalformed{Reason: err.Error()}
	}

	nestHost, err := readNestHost(r, pool, resolveClassName)
	if err != nil {
		return nil, &ErrMalformed{Reason: err.Error()}
	}

	return &ClassFile{
		MinorVersion:     minor,
		MajorVersion:     major,
		AccessFlags:      accessFlags,
		ClassName:        className,
		SuperClass:       superName,
		Interfaces:       interfaces,
		Fields:           fields,
		Methods:          methods,
		ConstantPoolSize: int(cpCount),
		NestHost:         nestHost,
	}, nil
}

// readNestHost reads the class-level attribute list and returns the
// NestHost attribute's resolved class name, or "" when no class file
// declares one (most classes — NestHost only appears on a nested
// class compiled as a member of some top-level host). A missing
// attribute list (a class file that ends right after methods, as test
// fixtures often do) is not an error: it means the same thing as zero
// attributes.
func readNestHost(r *reader, pool []cpEntry, resolveClassName func(uint16) (string, error)) (string, error) {
	if r.pos >= len(r.data) {
		return "", nil
	}

	attrCount, err := r.u2()
	if err != nil {
		return "", err
	}

	var nestHost string
	for a := 0; a < int(attrCount); a++ {
		nameIdx, err := r.u2()
		if err != nil {
			return "", err
		}
		length, err := r.u4()
		if err != nil {
			return "", err
		}
		if int(nameIdx) >= len(pool) || pool[nameIdx].tag != tagUtf8 {
			return "", fmt.Errorf("bad attribute name index")
		}
		if pool[nameIdx].utf8 != "NestHost" {
			if err := r.skip(int(length)); err != nil {
				return "", err
			}
			continue
		}
		hostClassIdx, err := r.u2()
		if err != nil {
			return "", err
		}
		name, err := resolveClassName(hostClassIdx)
		if err != nil {
			return "", err
		}
		nestHost = name
	}
	return nestHost, nil
}
