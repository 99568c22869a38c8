package bytecode

// ChangeClass enumerates the structural diff outcome between two
// versions of a class, feeding C5's Accepted/Rejected classification
// (spec.md §4.5).
type ChangeClass string

const (
	// ChangeBodyOnly means every field kept its (name, descriptor) and
	// every method kept its (name, descriptor, access flags); field
	// access flags are not compared.
	ChangeBodyOnly ChangeClass = "BodyOnly"
	// ChangeFieldAdded means one or more fields or methods were added
	// and nothing was removed, retyped or otherwise changed.
	ChangeFieldAdded ChangeClass = "FieldAdded"
	// ChangeIncompatible means a structural rule spec.md §4.5 forbids
	// was violated: removed/retyped field, removed/changed method
	// signature, supertype or interface set change, class-flag change.
	ChangeIncompatible ChangeClass = "Incompatible"
)

// Diff is the structural comparison between an old and new ClassFile.
type Diff struct {
	Class             ChangeClass
	ClassFlagsChanged  bool
	SupertypeChanged   bool
	InterfacesChanged  bool
	NestHostChanged    bool
	AddedFields        []Member
	RemovedFields      []Member
	RetypedFields      []Member // new definition of a field whose descriptor changed
	AddedMethods       []Member
	RemovedMethods     []Member
	ChangedMethodFlags []Member // method kept signature but access flags changed
}

// Compare computes the structural diff between old and new. It never
// inspects method bodies or constant-pool literal values beyond what's
// needed to resolve names — spec.md §4.5 scopes the validator to
// structural compatibility, not behavioral equivalence.
func Compare(old, next *ClassFile) Diff {
	d := Diff{
		ClassFlagsChanged: (old.AccessFlags & StabilityMask) != (next.AccessFlags & StabilityMask),
		SupertypeChanged:  old.SuperClass != next.SuperClass,
		InterfacesChanged: !sameSet(old.Interfaces, next.Interfaces),
		NestHostChanged:   old.NestHost != next.NestHost,
	}

	oldFields := indexByName(old.Fields)
	newFields := indexByName(next.Fields)
	for name, of := range oldFields {
		nf, ok := newFields[name]
		if !ok {
			d.RemovedFields = append(d.RemovedFields, of)
			continue
		}
		if nf.Descriptor != of.Descriptor {
			d.RetypedFields = append(d.RetypedFields, nf)
		}
	}
	for name, nf := range newFields {
		if _, ok := oldFields[name]; !ok {
			d.AddedFields = append(d.AddedFields, nf)
		}
	}

	oldMethods := indexByKey(old.Methods)
	newMethods := indexByKey(next.Methods)
	for key, om := range oldMethods {
		nm, ok := newMethods[key]
		if !ok {
			d.RemovedMethods = append(d.RemovedMethods, om)
			continue
		}
		if nm.AccessFlags != om.AccessFlags {
			d.ChangedMethodFlags = append(d.ChangedMethodFlags, nm)
		}
	}
	for key, nm := range newMethods {
		if _, ok := oldMethods[key]; !ok {
			d.AddedMethods = append(d.AddedMethods, nm)
		}
	}

	switch {
	case d.ClassFlagsChanged || d.SupertypeChanged || d.InterfacesChanged || d.NestHostChanged ||
		len(d.RemovedFields) > 0 || len(d.RetypedFields) > 0 ||
		len(d.RemovedMethods) > 0 || len(d.ChangedMethodFlags) > 0:
		d.Class = ChangeIncompatible
	case len(d.AddedFields) > 0 || len(d.AddedMethods) > 0:
		d.Class = ChangeFieldAdded
	default:
		d.Class = ChangeBodyOnly
	}

	return d
}

func indexByName(members []Member) map[string]Member {
	m := make(map[string]Member, len(members))
	for _, f := range members {
		m[f.Name] = f
	}
	return m
}

func indexByKey(members []Member) map[string]Member {
	m := make(map[string]Member, len(members))
	for _, meth := range members {
		m[meth.Key()] = meth
	}
	return m
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, v := range a {
		counts[v]++
	}
	for _, v := range b {
		counts[v]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}
