package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	// Verify all types implement IRValue (compile-time check via assignment)
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRNumber("42")
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), NewIRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestIRObjectSortedKeys(t *testing.T) {
	obj := IRObject{
		"zebra":  IRString("z"),
		"apple":  IRString("a"),
		"banana": IRString("b"),
	}

	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestIRObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := IRObject{
		"a":  NewIRInt(1),
		"A":  NewIRInt(2),
		"aa": NewIRInt(3),
		"aA": NewIRInt(4),
		"Aa": NewIRInt(5),
		"AA": NewIRInt(6),
	}

	// 'A' = 65, 'a' = 97
	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, obj.SortedKeys())
}

func TestIRObjectHasKeys(t *testing.T) {
	wide := IRObject{"a": NewIRInt(1), "b": NewIRInt(2), "c": NewIRInt(3)}
	narrow := IRObject{"a": NewIRInt(9), "c": NewIRInt(9)}

	assert.True(t, wide.HasKeys(narrow))
	assert.False(t, narrow.HasKeys(wide))
	assert.True(t, narrow.HasKeys(IRObject{}))
}

func TestParse(t *testing.T) {
	v, err := Parse([]byte(`{"a":[1,2.5,"x",true,null],"b":{}}`))
	require.NoError(t, err)

	obj, ok := v.(IRObject)
	require.True(t, ok)
	assert.Equal(t, IRArray{IRNumber("1"), IRNumber("2.5"), IRString("x"), IRBool(true), IRNull{}}, obj["a"])
	assert.Equal(t, IRObject{}, obj["b"])
}

func TestParseKeepsLargeIntegers(t *testing.T) {
	v, err := Parse([]byte(`9007199254740993`))
	require.NoError(t, err)
	assert.Equal(t, IRNumber("9007199254740993"), v)
}

func TestParseRejectsInvalid(t *testing.T) {
	for _, input := range []string{``, `{`, `not json`, `{} {}`, `1 x`} {
		_, err := Parse([]byte(input))
		assert.Error(t, err, "input %q", input)
	}
}

func TestParseAllowsTrailingWhitespace(t *testing.T) {
	v, err := Parse([]byte("[1]\n  "))
	require.NoError(t, err)
	assert.Equal(t, IRArray{IRNumber("1")}, v)
}

func TestScalarEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b IRValue
		want bool
	}{
		{"same string", IRString("x"), IRString("x"), true},
		{"different string", IRString("x"), IRString("y"), false},
		{"int and float spelling", IRNumber("1"), IRNumber("1.0"), true},
		{"exponent", IRNumber("100"), IRNumber("1e2"), true},
		{"different numbers", IRNumber("1"), IRNumber("2"), false},
		{"large ints", IRNumber("9007199254740993"), IRNumber("9007199254740992"), false},
		{"null null", IRNull{}, IRNull{}, true},
		{"null vs string", IRNull{}, IRString(""), false},
		{"bool", IRBool(true), IRBool(true), true},
		{"number vs string", IRNumber("1"), IRString("1"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScalarEqual(tt.a, tt.b))
		})
	}
}

func TestMarshalIRValue(t *testing.T) {
	v := IRObject{
		"z": IRArray{NewIRInt(1), IRNull{}},
		"a": IRString("<tag>"),
	}
	b, err := MarshalIRValue(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"<tag>","z":[1,null]}`, string(b))

	b, err = MarshalIRValue(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestKindName(t *testing.T) {
	assert.Equal(t, "object", KindName(IRObject{}))
	assert.Equal(t, "array", KindName(IRArray{}))
	assert.Equal(t, "number", KindName(NewIRFloat(1.5)))
	assert.Equal(t, "missing", KindName(nil))
}
