package fields

import (
	"encoding/base64"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// EncodeExtra serializes extra launch fields for wire transport between pages.
//
// yamlText is a YAML mapping of field name to value. Every key must satisfy
// IsValidName, or an *InvalidFieldError is returned. On success the return
// value is the base64 encoding of yamlText itself, not of a re-serialized
// mapping, so the exact input text round-trips through DecodeExtra.
func EncodeExtra(yamlText string) (string, error) {
	var extra map[string]string
	if err := yaml.Unmarshal([]byte(yamlText), &extra); err != nil {
		return "", fmt.Errorf("malformed extra fields: %w", err)
	}

	var badFields []string
	for name := range extra {
		if !IsValidName(name) {
			badFields = append(badFields, name)
		}
	}
	if len(badFields) > 0 {
		sort.Strings(badFields)
		return "", &InvalidFieldError{Names: badFields, Serializing: true}
	}

	return base64.StdEncoding.EncodeToString([]byte(yamlText)), nil
}

// DecodeExtra reverses EncodeExtra. The keys are not re-validated; EncodeExtra
// already did that.
func DecodeExtra(encoded string) (map[string]string, error) {
	text, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("malformed extra fields encoding: %w", err)
	}
	var extra map[string]string
	if err := yaml.Unmarshal(text, &extra); err != nil {
		return nil, fmt.Errorf("malformed extra fields: %w", err)
	}
	return extra, nil
}
