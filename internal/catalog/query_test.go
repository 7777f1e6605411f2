package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSearchExpr(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"single word", "pikachu", `name:*pikachu*`},
		{"multi word quoted", "pikachu ex", `name:"*pikachu ex*"`},
		{"three words", "dark mewtwo ex", `name:"*dark mewtwo ex*"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildSearchExpr(tt.query))
		})
	}
}

func TestBuildIDExpr(t *testing.T) {
	assert.Equal(t, `id:"base1-4"`, buildIDExpr([]string{"base1-4"}))
	assert.Equal(t, `id:"base1-4" OR id:"base1-58"`, buildIDExpr([]string{"base1-4", "base1-58"}))
}
