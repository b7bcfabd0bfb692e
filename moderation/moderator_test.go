package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestModerator(t *testing.T, words ...string) *Moderator {
	t.Helper()
	m, err := NewModerator(words, '*')
	require.NoError(t, err)
	return m
}

func TestCensor_MasksForbiddenWords(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t, "badword", "idiot")

	req.Equal("you *******", m.Censor("you badword"))
	req.Equal("***** and *******", m.Censor("idiot and badword"))
	req.Equal("clean sentence", m.Censor("clean sentence"))
}

func TestCensor_LeetAndCaseVariants(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t, "badword")

	// Leet substitutions and case changes must not slip through.
	req.Equal("you *******", m.Censor("you B4dw0rd"))
	req.Equal("you *******", m.Censor("you BADWORD"))
	req.Equal("you *******", m.Censor("you b@dword"))
}

func TestCensor_PunctuationInsideWord(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t, "badword")

	// Separators inside the word are part of the matched span.
	req.Equal("you ********", m.Censor("you bad.word"))
	req.Equal("you *********", m.Censor("you b a dword"))
}

func TestCensor_PreservesSurroundingText(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t, "badword")

	req.Equal("Hello, *******! Bye.", m.Censor("Hello, badword! Bye."))
}

func TestCensor_NilModerator(t *testing.T) {
	req := require.New(t)

	m, err := NewModerator(nil, '*')
	req.NoError(err)
	req.Nil(m)

	// A nil moderator passes everything through untouched.
	req.Equal("anything goes", m.Censor("anything goes"))
}

func TestCensor_EmptyInput(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t, "badword")

	req.Equal("", m.Censor(""))
	req.Equal("...", m.Censor("..."))
}
