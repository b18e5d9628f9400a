package render

import (
	"fmt"
	"os"
	"unicode/utf8"
)

// LoadSource reads a whole shader file.
func LoadSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read shader: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrSource, path)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not UTF-8", ErrSource, path)
	}
	return string(data), nil
}
