package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestParse_NoPrefix(t *testing.T) {
	_, ok := Parse("!", "start")
	assert.False(t, ok)
}

func TestParse_PrefixOnly(t *testing.T) {
	_, ok := Parse("!", "!")
	assert.False(t, ok)
	_, ok = Parse("!", "!  start")
	assert.False(t, ok)
}

func TestParse_SingleWord(t *testing.T) {
	result, ok := Parse("!", "!start")
	assert.True(t, ok)
	assert.Equal(t, "start", result.Command)
	assert.Nil(t, result.Args)
	assert.Equal(t, "", result.RawArgs)
}

func TestParse_Lowercase(t *testing.T) {
	result, ok := Parse("!", "!START")
	assert.True(t, ok)
	assert.Equal(t, "start", result.Command)
}

func TestParse_WithArgs(t *testing.T) {
	result, ok := Parse("!", "  !start @bob hard  ")
	assert.True(t, ok)
	assert.Equal(t, "start", result.Command)
	assert.Equal(t, []string{"@bob", "hard"}, result.Args)
	assert.Equal(t, "@bob hard", result.RawArgs)
}

func TestParse_MultiCharPrefix(t *testing.T) {
	result, ok := Parse("ttt:", "ttt:play 5")
	assert.True(t, ok)
	assert.Equal(t, "play", result.Command)
	assert.Equal(t, []string{"5"}, result.Args)
}

func TestPropertyParseLowercasesKeyword(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		word := rapid.StringMatching(`[A-Za-z]{1,20}`).Draw(t, "word")
		args := rapid.StringMatching(`( [a-z0-9@]{1,5}){0,3}`).Draw(t, "args")
		result, ok := Parse("!", "!"+word+args)
		if !ok {
			t.Fatalf("Parse(%q) not ok", "!"+word+args)
		}
		if result.Command != strings.ToLower(word) {
			t.Fatalf("command = %q, want %q", result.Command, strings.ToLower(word))
		}
		if result.RawArgs != strings.TrimSpace(args) {
			t.Fatalf("raw args = %q, want %q", result.RawArgs, strings.TrimSpace(args))
		}
	})
}
