//go:build !windows

package config

// DefaultOutput is the output selected when none is given.
const DefaultOutput = "console"
