package templating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepr(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"none", nil, "None"},
		{"true", true, "True"},
		{"int", 3, "3"},
		{"float", 1.5, "1.5"},
		{"string", "abc", "'abc'"},
		{"single quote", "it's", `"it's"`},
		{"both quotes", `it's "x"`, `'it\'s "x"'`},
		{"escapes", "a\\b\n\t", `'a\\b\n\t'`},
		{"control", "\x01", `'\x01'`},
		{"list", []string{"a", "b"}, "['a', 'b']"},
		{"empty list", []string{}, "[]"},
		{"map", map[string]any{"b": 1, "a": "x"}, "{'a': 'x', 'b': 1}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Repr(tt.in))
		})
	}
}
