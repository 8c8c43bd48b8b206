package telnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestColorize(t *testing.T) {
	assert.Equal(t, "\033[1mhi\033[0m", Colorize(Bold, "hi"))
	assert.Equal(t, "hi", StripANSI(Colorize(Cyan, "hi")))
	assert.Equal(t, "unterminated \033[3", StripANSI("unterminated \033[3"))
}

func TestPropertyStripANSIInvertsColorize(t *testing.T) {
	colors := []string{Reset, Bold, Dim, Red, Green, Yellow, Cyan}
	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.StringMatching(`[a-zA-Z0-9 ]{0,40}`).Draw(rt, "text")
		color := rapid.SampledFrom(colors).Draw(rt, "color")
		if got := StripANSI(Colorize(color, text)); got != text {
			rt.Fatalf("StripANSI(Colorize(%q)) = %q", text, got)
		}
	})
}
