package version

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestVersionDefault(t *testing.T) {
	assert.NotEmpty(t, Version)
}

func TestVersionOverride(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "1.2.3"
	assert.Equal(t, "1.2.3", Version)
}

func TestColored(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	for _, v := range []string{
		"0.1.0",
		"1.2.3",
		"2.0.0-alpha",
		"1.2.3-rc.1+build.123",
		"dev",
		"1.2",
	} {
		assert.Equal(t, v, Colored(v), v)
	}
}

func TestColoredKeepsSuffixPlain(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = prev })

	out := Colored("1.2.3-dev")
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "-dev")
	assert.NotEqual(t, "1.2.3-dev", out)
}
