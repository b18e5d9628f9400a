package gpu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCString(t *testing.T) {
	tests := []string{"", "void main() {}", vertexSource, "void main() {}\x00"}
	for _, src := range tests {
		got := cString(src)
		assert.True(t, strings.HasSuffix(got, "\x00"), "%q", src)
		assert.Equal(t, 1, strings.Count(got, "\x00"), "%q", src)
		assert.Equal(t, strings.TrimSuffix(src, "\x00"), strings.TrimSuffix(got, "\x00"))
	}
}
