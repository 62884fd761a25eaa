package fields

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeExtraFailsIfInputContainsInvalidField(t *testing.T) {
	_, err := EncodeExtra("bad_field: value")
	require.Error(t, err)
	var invalid *InvalidFieldError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, []string{"bad_field"}, invalid.Names)
	assert.Equal(t, "Cannot serialize invalid fields: bad_field", err.Error())
}

func TestEncodeExtraFailsIfInputIsNotYAML(t *testing.T) {
	_, err := EncodeExtra(": : :")
	require.Error(t, err)
}

func TestRoundTripOfValidFields(t *testing.T) {
	yamlText := UserImage + ": value"
	encoded, err := EncodeExtra(yamlText)
	require.NoError(t, err)

	decoded, err := DecodeExtra(encoded)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{UserImage: "value"}, decoded)
}

func TestEncodeExtraPreservesOriginalTextNotReserializedMapping(t *testing.T) {
	// Quoting style and key order are the author's, so the encoded form is the
	// input text itself rather than a normalized dump of the parsed mapping.
	yamlText := "user_image: 'value'\nroles: student\n"
	encoded, err := EncodeExtra(yamlText)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, yamlText, string(raw))
}

func TestDecodeExtraFailsOnBadBase64(t *testing.T) {
	_, err := DecodeExtra("%%% not base64 %%%")
	require.Error(t, err)
}

func TestEncodeExtraEmptyInput(t *testing.T) {
	encoded, err := EncodeExtra("")
	require.NoError(t, err)

	decoded, err := DecodeExtra(encoded)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}
