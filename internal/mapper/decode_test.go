package mapper

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"array", `[{"a": 1}, {"a": 2}]`, 2},
		{"jsonl", "{\"a\": 1}\n{\"a\": 2}\n{\"a\": 3}\n", 3},
		{"concatenated", `{"a": 1}{"a": 2}`, 2},
		{"single object with leading space", "  \n {\"a\": 1}", 1},
		{"empty", "  \n", 0},
		{"empty array", "[]", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := Decode(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Len(t, docs, tt.want)
		})
	}
}

func TestDecode_KeepsNumbersExact(t *testing.T) {
	docs, err := Decode(strings.NewReader(`{"n": 2147483647, "f": 0.1}`))

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, json.Number("2147483647"), docs[0]["n"])
	assert.Equal(t, json.Number("0.1"), docs[0]["f"])
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"truncated stream", `{"a": 1} {"a":`},
		{"array of scalars", `[1, 2]`},
		{"bare scalar", `42`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Equal(t, txerrors.CategoryValidation, txerrors.GetCategory(err))
		})
	}
}
