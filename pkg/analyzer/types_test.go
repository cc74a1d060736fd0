package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, TypeLong, NormalizeType("System.Int64"))
	assert.Equal(t, TypeReal, NormalizeType(" double "))
	assert.Equal(t, TypeGUID, NormalizeType("uniqueid"))
	assert.Equal(t, TypeUnknown, NormalizeType("blob"))
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		op, a, b string
		want     string
		ok       bool
	}{
		{"+", TypeInt, TypeLong, TypeLong, true},
		{"*", TypeLong, TypeReal, TypeReal, true},
		{"-", TypeDatetime, TypeDatetime, TypeTimespan, true},
		{"+", TypeDatetime, TypeTimespan, TypeDatetime, true},
		{"/", TypeTimespan, TypeTimespan, TypeReal, true},
		{"*", TypeTimespan, TypeLong, TypeTimespan, true},
		{"+", TypeDynamic, TypeString, TypeUnknown, true},
		{"+", TypeString, TypeString, "", false},
		{"%", TypeTimespan, TypeLong, "", false},
		{"+", TypeDatetime, TypeDatetime, "", false},
	}
	for _, tt := range tests {
		got, ok := arithmetic(tt.op, tt.a, tt.b)
		assert.Equal(t, tt.ok, ok, "%s %s %s", tt.a, tt.op, tt.b)
		assert.Equal(t, tt.want, got, "%s %s %s", tt.a, tt.op, tt.b)
	}
}

func TestMatchWildcard(t *testing.T) {
	assert.True(t, matchWildcard("Storm*", "StormEvents"))
	assert.True(t, matchWildcard("*Events", "StormEvents"))
	assert.True(t, matchWildcard("S*r*s", "StormEvents"))
	assert.True(t, matchWildcard("*", "x"))
	assert.False(t, matchWildcard("Storm*", "PopulationData"))
	assert.False(t, matchWildcard("S*x*s", "StormEvents"))
	assert.False(t, matchWildcard("State", "StateName"))
}

func TestFunctionArity(t *testing.T) {
	f, ok := lookupFunction("substring")
	assert.True(t, ok)
	assert.Equal(t, "between 2 and 3 arguments", f.arity())
	assert.True(t, f.accepts(3))
	assert.False(t, f.accepts(4))

	f, _ = lookupFunction("strcat")
	assert.Equal(t, "at least 1 argument", f.arity())
	f, _ = lookupFunction("strlen")
	assert.Equal(t, "1 argument", f.arity())
	f, _ = lookupFunction("count")
	assert.Equal(t, "0 arguments", f.arity())
}

func TestFunctionResultTypes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"sum", []string{TypeInt}, TypeLong},
		{"sum", []string{TypeReal}, TypeReal},
		{"iff", []string{TypeBool, TypeUnknown, TypeString}, TypeString},
		{"case", []string{TypeBool, TypeLong, TypeBool, TypeLong, TypeLong}, TypeLong},
		{"coalesce", []string{TypeDynamic, TypeReal}, TypeReal},
		{"bin", []string{TypeDatetime, TypeTimespan}, TypeDatetime},
		{"dcount", []string{TypeString}, TypeLong},
	}
	for _, tt := range tests {
		f, ok := lookupFunction(tt.name)
		if assert.True(t, ok, tt.name) {
			assert.Equal(t, tt.want, f.result(tt.args), tt.name)
		}
	}
}
