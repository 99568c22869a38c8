package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseExtractsIdentity(t *testing.T) {
	data := build(t, "com/example/Greeter", "java/lang/Object",
		[]string{"java/io/Serializable"},
		[]memberSpec{{name: "name", descriptor: "Ljava/lang/String;", flags: AccPublic}},
		[]memberSpec{{name: "greet", descriptor: "()Ljava/lang/String;", flags: AccPublic}},
	)

	cf, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, "com/example/Greeter", cf.ClassName)
	require.Equal(t, "java/lang/Object", cf.SuperClass)
	require.Equal(t, []string{"java/io/Serializable"}, cf.Interfaces)
	require.Len(t, cf.Fields, 1)
	require.Len(t, cf.Methods, 1)
}

func TestParseRejectsBadMagic(t *testing.T) {
	_, err := Parse([]byte{0, 1, 2, 3})
	require.Error(t, err)
	require.IsType(t, &ErrMalformed{}, err)
}

func TestParseRejectsTruncated(t *testing.T) {
	data := build(t, "com/example/Greeter", "java/lang/Object", nil, nil, nil)
	_, err := Parse(data[:len(data)-2])
	require.Error(t, err)
}

func TestCompareBodyOnlyChange(t *testing.T) {
	old := build(t, "com/example/Greeter", "java/lang/Object", nil,
		nil, []memberSpec{{name: "greet", descriptor: "()Ljava/lang/String;", flags: AccPublic}})
	next := build(t, "com/example/Greeter", "java/lang/Object", nil,
		nil, []memberSpec{{name: "greet", descriptor: "()Ljava/lang/String;", flags: AccPublic}})

	oldCF, err := Parse(old)
	require.NoError(t, err)
	newCF, err := Parse(next)
	require.NoError(t, err)

	diff := Compare(oldCF, newCF)
	require.Equal(t, ChangeBodyOnly, diff.Class)
	require.Empty(t, diff.AddedMethods)
	require.Empty(t, diff.RemovedMethods)
}

func TestCompareFieldAddedIsRedefinable(t *testing.T) {
	old := build(t, "com/example/Counter", "java/lang/Object", nil,
		[]memberSpec{{name: "count", descriptor: "I", flags: AccPublic}}, nil)
	next := build(t, "com/example/Counter", "java/lang/Object", nil,
		[]memberSpec{
			{name: "count", descriptor: "I", flags: AccPublic},
			{name: "label", descriptor: "Ljava/lang/String;", flags: AccPublic},
		}, nil)

	oldCF, err := Parse(old)
	require.NoError(t, err)
	newCF, err := Parse(next)
	require.NoError(t, err)

	diff := Compare(oldCF, newCF)
	require.Equal(t, ChangeFieldAdded, diff.Class)
	require.Len(t, diff.AddedFields, 1)
	require.Equal(t, "label", diff.AddedFields[0].Name)
}

func TestCompareRemovedMethodIsIncompatible(t *testing.T) {
	old := build(t, "com/example/Service", "java/lang/Object", nil, nil,
		[]memberSpec{
			{name: "start", descriptor: "()V", flags: AccPublic},
			{name: "stop", descriptor: "()V", flags: AccPublic},
		})
	next := build(t, "com/example/Service", "java/lang/Object", nil, nil,
		[]memberSpec{{name: "start", descriptor: "()V", flags: AccPublic}})

	oldCF, err := Parse(old)
	require.NoError(t, err)
	newCF, err := Parse(next)
	require.NoError(t, err)

	diff := Compare(oldCF, newCF)
	require.Equal(t, ChangeIncompatible, diff.Class)
	require.Len(t, diff.RemovedMethods, 1)
	require.Equal(t, "stop", diff.RemovedMethods[0].Name)
}

func TestCompareSupertypeChangeIsIncompatible(t *testing.T) {
	old := build(t, "com/example/Widget", "java/lang/Object", nil, nil, nil)
	next := build(t, "com/example/Widget", "com/example/BaseWidget", nil, nil, nil)

	oldCF, err := Parse(old)
	require.NoError(t, err)
	newCF, err := Parse(next)
	require.NoError(t, err)

	diff := Compare(oldCF, newCF)
	require.Equal(t, ChangeIncompatible, diff.Class)
	require.True(t, diff.SupertypeChanged)
}

func TestCompareRetypedFieldIsIncompatible(t *testing.T) {
	old := build(t, "com/example/Box", "java/lang/Object", nil,
		[]memberSpec{{name: "value", descriptor: "I", flags: AccPublic}}, nil)
	next := build(t, "com/example/Box", "java/lang/Object", nil,
		[]memberSpec{{name: "value", descriptor: "Ljava/lang/Object;", flags: AccPublic}}, nil)

	oldCF, err := Parse(old)
	require.NoError(t, err)
	newCF, err := Parse(next)
	require.NoError(t, err)

	diff := Compare(oldCF, newCF)
	require.Equal(t, ChangeIncompatible, diff.Class)
	require.Len(t, diff.RetypedFields, 1)
}

func TestParseExtractsNestHost(t *testing.T) {
	data := buildNested(t, "com/example/Outer$Inner", "com/example/Outer")

	cf, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, "com/example/Outer", cf.NestHost)
}

func TestParseWithoutNestHostAttributeLeavesItEmpty(t *testing.T) {
	data := buildNested(t, "com/example/Standalone", "")

	cf, err := Parse(data)
	require.NoError(t, err)
	require.Empty(t, cf.NestHost)
}

func TestCompareNestHostChangeIsIncompatible(t *testing.T) {
	old := buildNested(t, "com/example/Outer$Inner", "com/example/Outer")
	next := buildNested(t, "com/example/Outer$Inner", "com/example/OtherOuter")

	oldCF, err := Parse(old)
	require.NoError(t, err)
	newCF, err := Parse(next)
	require.NoError(t, err)

	diff := Compare(oldCF, newCF)
	require.Equal(t, ChangeIncompatible, diff.Class)
	require.True(t, diff.NestHostChanged)
}
