package lti

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const toolYAML = `
- description: description_value
  key: key_value
  name: name_value
  secret: secret_value
  url: url_value
  version: "1.2"
`

const secondToolYAML = `
- description: description_value
  key: key_value
  name: name_value
  secret: secret_value
  url: url_value
  version: "1.2"
- description: second_description
  key: second_key
  name: second_name
  secret: second_secret
  url: second_url
  version: "1.1"
`

func TestParseSecurityEmptyStringReturnsEmptyMap(t *testing.T) {
	got, err := ParseSecurity("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseSecurityOnePair(t *testing.T) {
	got, err := ParseSecurity("- key1: value1")
	require.NoError(t, err)
	assert.Equal(t, map[string]SecurityConfig{
		"key1": {Key: "key1", Secret: "value1"},
	}, got)
}

func TestParseSecurityMultiplePairs(t *testing.T) {
	got, err := ParseSecurity("- key1: value1\n- key2: value2")
	require.NoError(t, err)
	assert.Equal(t, map[string]SecurityConfig{
		"key1": {Key: "key1", Secret: "value1"},
		"key2": {Key: "key2", Secret: "value2"},
	}, got)
}

func TestParseSecurityNumericKeyBecomesString(t *testing.T) {
	got, err := ParseSecurity("- 1: secret")
	require.NoError(t, err)
	assert.Equal(t, map[string]SecurityConfig{
		"1": {Key: "1", Secret: "secret"},
	}, got)
}

func TestParseSecurityNonuniqueKey(t *testing.T) {
	_, err := ParseSecurity("- key: secret1\n- key: secret2")
	require.Error(t, err)
	assert.Equal(t, "Key is not unique: key", err.Error())
}

func TestParseSecurityNonuniqueSecret(t *testing.T) {
	_, err := ParseSecurity("- key1: secret\n- key2: secret")
	require.Error(t, err)
	assert.Equal(t, "Secret is not unique: secret", err.Error())
}

func TestParseSecurityErrorWhenNotList(t *testing.T) {
	_, err := ParseSecurity("not list")
	require.Error(t, err)
	assert.Equal(t, "Cannot parse settings config yaml", err.Error())
}

func TestParseSecurityErrorWhenListContainsNonMap(t *testing.T) {
	_, err := ParseSecurity("- 0")
	require.Error(t, err)
	assert.Equal(t, "Cannot parse settings config yaml", err.Error())
}

func TestParseSecurityErrorWhenEntryHasMultiplePairs(t *testing.T) {
	_, err := ParseSecurity("- key1: value1\n  key2: value2")
	require.Error(t, err)
	assert.Equal(t, "Cannot parse settings config yaml", err.Error())
}

func TestParseToolsEmptyStringReturnsEmptyMap(t *testing.T) {
	got, err := ParseTools("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseToolsOneTool(t *testing.T) {
	got, err := ParseTools(toolYAML)
	require.NoError(t, err)
	assert.Equal(t, map[string]ToolConfig{
		"name_value": {
			Description: "description_value",
			Key:         "key_value",
			Name:        "name_value",
			Secret:      "secret_value",
			URL:         "url_value",
			Version:     Version1p2,
		},
	}, got)
}

func TestParseToolsMultipleTools(t *testing.T) {
	got, err := ParseTools(secondToolYAML)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Version1p2, got["name_value"].Version)
	assert.Equal(t, Version1p1, got["second_name"].Version)
}

func TestParseToolsUnquotedVersionKeepsOriginalSpelling(t *testing.T) {
	got, err := ParseTools(`
- description: d
  key: k
  name: n
  secret: 5678
  url: u
  version: 1.0
`)
	require.NoError(t, err)
	assert.Equal(t, Version1p0, got["n"].Version)
	assert.Equal(t, "5678", got["n"].Secret)
}

func TestParseToolsInvalidVersion(t *testing.T) {
	_, err := ParseTools(`
- description: d
  key: k
  name: n
  secret: s
  url: u
  version: "2.0"
`)
	require.Error(t, err)
	assert.Equal(t, "Unsupported version: 2.0; choices are 1.0, 1.1, 1.2", err.Error())
}

func TestParseToolsNonuniqueName(t *testing.T) {
	_, err := ParseTools(toolYAML + toolYAML[1:])
	require.Error(t, err)
	assert.Equal(t, "Name is not unique: name_value", err.Error())
}

func TestParseToolsErrorWhenNotList(t *testing.T) {
	_, err := ParseTools("not list")
	require.Error(t, err)
	assert.Equal(t, "Cannot parse tools config yaml", err.Error())
}

func TestParseToolsErrorWhenListContainsNonMap(t *testing.T) {
	_, err := ParseTools("- 0")
	require.Error(t, err)
	assert.Equal(t, "Cannot parse tools config yaml", err.Error())
}

func TestParseToolsErrorWhenEntryMissingField(t *testing.T) {
	_, err := ParseTools("- name: only_name")
	require.Error(t, err)
	assert.Equal(t, "Cannot parse tools config yaml", err.Error())
}

func TestToolConfigString(t *testing.T) {
	config := ToolConfig{Name: "my_tool", Version: Version1p0}
	assert.Equal(t, "LTI Tool Config(my_tool, LTI 1.0)", config.String())
}

func TestSecurityConfigStringOmitsSecret(t *testing.T) {
	config := SecurityConfig{Key: "key1", Secret: "sensitive"}
	assert.NotContains(t, config.String(), "sensitive")
}
