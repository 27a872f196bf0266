package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeGameIDPassesValidThrough(t *testing.T) {
	assert.Equal(t, "sm64", sanitizeGameID("sm64"))
	assert.Equal(t, "Zelda_OoT-v1.1", sanitizeGameID("Zelda_OoT-v1.1"))
}

func TestSanitizeGameIDReplacesDisallowedCharacters(t *testing.T) {
	assert.Equal(t, "super_mario_64", sanitizeGameID("super mario 64"))
	assert.Equal(t, "a_b", sanitizeGameID("a/b"))
}

func TestSanitizeGameIDTruncatesTo128(t *testing.T) {
	got := sanitizeGameID(strings.Repeat("a", 200))
	assert.Len(t, got, maxGameIDLength)
}

func TestSanitizeGameIDEmptyBecomesUnderscore(t *testing.T) {
	assert.Equal(t, "_", sanitizeGameID(""))
}
