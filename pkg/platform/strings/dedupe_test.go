package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrimLower(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "nil stays nil", in: nil, want: nil},
		{name: "empty stays empty", in: []string{}, want: []string{}},
		{name: "blanks dropped", in: []string{" ", "", "\t"}, want: []string{}},
		{
			name: "case-insensitive repeats collapse to first position",
			in:   []string{"Legal@Acme.io ", "ops@acme.io", " legal@acme.io"},
			want: []string{"legal@acme.io", "ops@acme.io"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrimLower(tt.in))
		})
	}
}
