package strings

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"absent fragments dropped", []string{"", "  ", "a@x.com"}, []string{"a@x.com"}},
		{"first occurrence wins", []string{"b@x.com", "a@x.com", "b@x.com"}, []string{"b@x.com", "a@x.com"}},
		{"trimmed before comparing", []string{" 123 ", "123"}, []string{"123"}},
		{"case is significant", []string{"A@x.com", "a@x.com"}, []string{"A@x.com", "a@x.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrim(tt.in))
		})
	}
}

func TestDedupeAndTrimEncodesAsArray(t *testing.T) {
	out, err := json.Marshal(DedupeAndTrim(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}
