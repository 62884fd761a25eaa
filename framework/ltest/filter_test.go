package ltest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParsePattern(t *testing.T, s string) TestIDPattern {
	p, err := ParseTestIDPattern(s)
	require.NoError(t, err)
	return p
}

func TestTestIDPatternMatch(t *testing.T) {
	p := mustParsePattern(t, "lti/launch")

	assert.True(t, p.Match(TestID{"lti", "launch"}, false))
	assert.True(t, p.Match(TestID{"lti", "launch", "signed form"}, false))
	assert.False(t, p.Match(TestID{"lti", "validation"}, false))

	// A pattern longer than the ID only matches when parents are included.
	assert.False(t, p.Match(TestID{"lti"}, false))
	assert.True(t, p.Match(TestID{"lti"}, true))
}

func TestParseTestIDPatternRejectsBadRegex(t *testing.T) {
	_, err := ParseTestIDPattern("lti/(")
	assert.Error(t, err)
}

func TestRegexFilters(t *testing.T) {
	var filters RegexFilters
	require.NoError(t, filters.MustMatch.Set("enrollment"))
	require.NoError(t, filters.MustNotMatch.Set("enrollment/private"))

	assert.True(t, filters.Match(TestID{"enrollment", "public"}))
	assert.False(t, filters.Match(TestID{"enrollment", "private"}))
	assert.False(t, filters.Match(TestID{"login"}))

	// parent scopes of a must-match pattern still run
	assert.True(t, filters.Match(TestID{"enrollment"}))
}
